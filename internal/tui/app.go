// ABOUTME: Main Bubble Tea application model
// ABOUTME: Coordinates the categories, topics and posts panes and replying

package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/models"
)

// Pane represents which pane is focused
type Pane int

const (
	CategoriesPane Pane = iota
	TopicsPane
	PostsPane
)

// PostCreatedMsg reports a reply sent from the compose line.
type PostCreatedMsg struct {
	Post *models.Post
}

// readMarkedMsg is the result of marking a topic read; it carries nothing to show.
type readMarkedMsg struct{}

var errComposeAnonymous = errors.New("sign in as a user to reply")

// Model is the main application state
type Model struct {
	svc        *forum.Service
	user       *models.User
	activePane Pane
	width      int
	height     int
	categories CategoriesModel
	topics     TopicsModel
	posts      PostsModel
	composing  bool
	compose    textinput.Model
	err        error
}

// NewModel creates a new TUI model. user may be nil to browse anonymously.
func NewModel(svc *forum.Service, user *models.User) Model {
	return Model{
		svc:        svc,
		user:       user,
		activePane: CategoriesPane,
		categories: NewCategoriesModel(svc),
		topics:     NewTopicsModel(svc),
		posts:      NewPostsModel(svc),
		compose:    newComposeInput(),
	}
}

func newComposeInput() textinput.Model {
	ti := textinput.New()
	ti.Prompt = "Reply: "
	ti.Placeholder = "write a reply"
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.categories.LoadCategories(), m.topics.LoadTopics(m.user, m.categories.ListOptions()))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.composing {
			return m.updateCompose(msg)
		}
		return m.updateNavigation(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case CategoriesLoadedMsg:
		m.categories.SetCategories(msg.Categories)
		return m, nil

	case TopicsLoadedMsg:
		m.topics.SetTopics(msg.Topics)
		return m, nil

	case PostsLoadedMsg:
		m.posts.SetPosts(msg)
		m.err = nil
		return m, m.markRead()

	case PostCreatedMsg:
		if topic := m.posts.Topic(); topic != nil {
			return m, m.posts.LoadPosts(m.user, topic)
		}
		return m, nil

	case readMarkedMsg:
		return m, nil

	case error:
		m.err = msg
		return m, nil
	}

	return m, nil
}

func (m Model) updateNavigation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.activePane = (m.activePane + 1) % 3
		return m, nil

	case "shift+tab":
		m.activePane = (m.activePane + 2) % 3
		return m, nil

	case "j", "down":
		switch m.activePane {
		case CategoriesPane:
			m.categories.MoveDown()
		case TopicsPane:
			m.topics.MoveDown()
		case PostsPane:
			m.posts.MoveDown()
		}
		return m, nil

	case "k", "up":
		switch m.activePane {
		case CategoriesPane:
			m.categories.MoveUp()
		case TopicsPane:
			m.topics.MoveUp()
		case PostsPane:
			m.posts.MoveUp()
		}
		return m, nil

	case "enter":
		switch m.activePane {
		case CategoriesPane:
			m.activePane = TopicsPane
			return m, m.topics.LoadTopics(m.user, m.categories.ListOptions())
		case TopicsPane:
			if topic := m.topics.Selected(); topic != nil {
				m.activePane = PostsPane
				return m, m.posts.LoadPosts(m.user, topic)
			}
		}
		return m, nil

	case "n":
		if m.posts.Topic() == nil {
			return m, nil
		}
		if m.user == nil {
			m.err = errComposeAnonymous
			return m, nil
		}
		m.composing = true
		m.compose.Reset()
		m.compose.Focus()
		return m, nil

	case "r":
		return m, tea.Batch(m.categories.LoadCategories(), m.topics.LoadTopics(m.user, m.categories.ListOptions()))
	}

	return m, nil
}

func (m Model) updateCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.composing = false
		m.compose.Blur()
		return m, nil
	case tea.KeyEnter:
		m.composing = false
		m.compose.Blur()
		return m, m.submitReply(m.compose.Value())
	}
	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg)
	return m, cmd
}

func (m Model) submitReply(raw string) tea.Cmd {
	topic := m.posts.Topic()
	if topic == nil || m.user == nil {
		return nil
	}
	svc, user := m.svc, m.user
	return func() tea.Msg {
		post, err := svc.CreatePost(context.Background(), user, topic.ID, raw, nil)
		if err != nil {
			return err
		}
		return PostCreatedMsg{Post: post}
	}
}

func (m Model) markRead() tea.Cmd {
	topic := m.posts.Topic()
	if topic == nil || m.user == nil {
		return nil
	}
	svc, user, last := m.svc, m.user, m.posts.LastPostNumber()
	return func() tea.Msg {
		if _, err := svc.MarkRead(context.Background(), user, topic.ID, last); err != nil {
			return err
		}
		return readMarkedMsg{}
	}
}

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	categoriesWidth := m.width / 5
	topicsWidth := m.width * 3 / 10
	postsWidth := m.width - categoriesWidth - topicsWidth

	activeStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("86"))

	inactiveStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240"))

	categoriesStyle := inactiveStyle
	topicsStyle := inactiveStyle
	postsStyle := inactiveStyle

	switch m.activePane {
	case CategoriesPane:
		categoriesStyle = activeStyle
	case TopicsPane:
		topicsStyle = activeStyle
	case PostsPane:
		postsStyle = activeStyle
	}

	categoriesView := categoriesStyle.Width(categoriesWidth - 2).Height(m.height - 4).Render(m.categories.View())
	topicsView := topicsStyle.Width(topicsWidth - 2).Height(m.height - 4).Render(m.topics.View())
	postsView := postsStyle.Width(postsWidth - 2).Height(m.height - 4).Render(m.posts.View())

	main := lipgloss.JoinHorizontal(lipgloss.Top, categoriesView, topicsView, postsView)

	status := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("[tab] switch pane  [j/k] navigate  [enter] select  [n] reply  [r] refresh  [q] quit")

	if m.composing {
		status = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Render(m.compose.View() + "  [enter] send  [esc] cancel")
	} else if m.err != nil {
		status = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Render("Error: " + m.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left, main, status)
}

// Run starts the TUI
func Run(svc *forum.Service, user *models.User) error {
	p := tea.NewProgram(NewModel(svc, user), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
