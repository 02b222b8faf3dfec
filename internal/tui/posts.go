// ABOUTME: Posts pane component
// ABOUTME: Displays the posts of a topic with author and reply context

package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/models"
)

// maxPostPreview is how many bytes of a post body the pane shows.
const maxPostPreview = 400

type PostsLoadedMsg struct {
	Topic *models.Topic
	Posts []*models.Post
	Names map[int64]string
}

type PostsModel struct {
	svc    *forum.Service
	topic  *models.Topic
	posts  []*models.Post
	names  map[int64]string
	scroll int
}

func NewPostsModel(svc *forum.Service) PostsModel {
	return PostsModel{svc: svc}
}

func (m *PostsModel) LoadPosts(viewer *models.User, topic *models.Topic) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx := context.Background()
		posts, err := svc.ListPosts(ctx, viewer, topic.ID)
		if err != nil {
			return err
		}
		users, err := svc.Users(ctx)
		if err != nil {
			return err
		}
		names := make(map[int64]string, len(users))
		for _, u := range users {
			names[u.ID] = u.Username
		}
		return PostsLoadedMsg{Topic: topic, Posts: posts, Names: names}
	}
}

func (m *PostsModel) SetPosts(msg PostsLoadedMsg) {
	m.topic = msg.Topic
	m.posts = msg.Posts
	m.names = msg.Names
	m.scroll = 0
}

// Topic is the topic whose posts are shown, or nil.
func (m *PostsModel) Topic() *models.Topic {
	return m.topic
}

// LastPostNumber is the highest post number loaded.
func (m *PostsModel) LastPostNumber() int {
	if len(m.posts) == 0 {
		return 0
	}
	return m.posts[len(m.posts)-1].PostNumber
}

func (m *PostsModel) MoveUp() {
	if m.scroll > 0 {
		m.scroll--
	}
}

func (m *PostsModel) MoveDown() {
	if m.scroll < len(m.posts)-1 {
		m.scroll++
	}
}

func (m PostsModel) View() string {
	if m.topic == nil || len(m.posts) == 0 {
		return lipgloss.NewStyle().Faint(true).Render("No posts\n\nSelect a topic")
	}

	var s string
	s += lipgloss.NewStyle().Bold(true).Render(m.topic.FancyTitle) + "\n\n"

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	faintStyle := lipgloss.NewStyle().Faint(true)
	noteStyle := lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214"))

	for i, post := range m.posts {
		if i < m.scroll {
			continue
		}

		if post.IsModeratorAction() {
			s += noteStyle.Render(fmt.Sprintf("%s: %s", m.names[post.UserID], post.Raw)) + "\n\n"
			continue
		}

		reply := ""
		if post.ReplyToPostNumber != nil {
			reply = fmt.Sprintf(" ↪ #%d", *post.ReplyToPostNumber)
		}
		s += headerStyle.Render(fmt.Sprintf("#%d %s", post.PostNumber, m.names[post.UserID]))
		s += faintStyle.Render(fmt.Sprintf(" · %s%s\n", post.CreatedAt.Format("Jan 02 15:04"), reply))

		content := post.Raw
		if len(content) > maxPostPreview {
			content = content[:maxPostPreview] + "..."
		}
		for _, line := range strings.Split(content, "\n") {
			s += line + "\n"
		}
		s += "\n"
	}

	return s
}
