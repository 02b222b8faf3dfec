// ABOUTME: Topics pane component
// ABOUTME: Lists topics of the selected category with status markers

package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/models"
)

type TopicsLoadedMsg struct {
	Topics []*models.Topic
}

type TopicsModel struct {
	svc    *forum.Service
	topics []*models.Topic
	cursor int
}

func NewTopicsModel(svc *forum.Service) TopicsModel {
	return TopicsModel{svc: svc}
}

func (m *TopicsModel) LoadTopics(viewer *models.User, opts forum.ListOptions) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		topics, err := svc.ListTopics(context.Background(), viewer, opts)
		if err != nil {
			return err
		}
		return TopicsLoadedMsg{Topics: topics}
	}
}

func (m *TopicsModel) SetTopics(topics []*models.Topic) {
	m.topics = topics
	if m.cursor >= len(topics) {
		m.cursor = len(topics) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *TopicsModel) MoveUp() {
	if m.cursor > 0 {
		m.cursor--
	}
}

func (m *TopicsModel) MoveDown() {
	if m.cursor < len(m.topics)-1 {
		m.cursor++
	}
}

func (m *TopicsModel) Selected() *models.Topic {
	if m.cursor >= 0 && m.cursor < len(m.topics) {
		return m.topics[m.cursor]
	}
	return nil
}

// markers renders the status icons of a topic.
func markers(t *models.Topic) string {
	var s string
	if t.Pinned {
		s += "📌"
	}
	if t.Closed {
		s += "🔒"
	}
	if t.Archived {
		s += "🗄"
	}
	if s != "" {
		s += " "
	}
	return s
}

func (m TopicsModel) View() string {
	if len(m.topics) == 0 {
		return lipgloss.NewStyle().Faint(true).Render("No topics")
	}

	var s string
	s += lipgloss.NewStyle().Bold(true).Render("Topics") + "\n\n"

	for i, topic := range m.topics {
		cursor := "  "
		style := lipgloss.NewStyle()

		if i == m.cursor {
			cursor = "> "
			style = style.Foreground(lipgloss.Color("86"))
		}
		if topic.Archived || !topic.Visible {
			style = style.Faint(true)
		}

		count := lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf(" %d", topic.PostsCount))
		s += fmt.Sprintf("%s%s%s%s\n", cursor, markers(topic), style.Render(topic.FancyTitle), count)
	}

	return s
}
