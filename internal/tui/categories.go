// ABOUTME: Categories pane component
// ABOUTME: Lists categories plus the all-topics and private-message views

package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harper/agora/internal/forum"
	"github.com/harper/agora/internal/models"
)

// Special entries shown above the real categories.
const (
	allTopicsEntry       = "All topics"
	privateMessagesEntry = "Private messages"
)

type CategoriesLoadedMsg struct {
	Categories []*models.Category
}

// categoryEntry is one selectable row of the pane.
type categoryEntry struct {
	label    string
	category *models.Category
	private  bool
}

type CategoriesModel struct {
	svc     *forum.Service
	entries []categoryEntry
	cursor  int
}

func NewCategoriesModel(svc *forum.Service) CategoriesModel {
	m := CategoriesModel{svc: svc}
	m.SetCategories(nil)
	return m
}

func (m *CategoriesModel) LoadCategories() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		cats, err := svc.Categories(context.Background())
		if err != nil {
			return err
		}
		return CategoriesLoadedMsg{Categories: cats}
	}
}

func (m *CategoriesModel) SetCategories(cats []*models.Category) {
	m.entries = []categoryEntry{{label: allTopicsEntry}, {label: privateMessagesEntry, private: true}}
	for _, c := range cats {
		m.entries = append(m.entries, categoryEntry{label: c.Name, category: c})
	}
	if m.cursor >= len(m.entries) {
		m.cursor = len(m.entries) - 1
	}
}

func (m *CategoriesModel) MoveUp() {
	if m.cursor > 0 {
		m.cursor--
	}
}

func (m *CategoriesModel) MoveDown() {
	if m.cursor < len(m.entries)-1 {
		m.cursor++
	}
}

// ListOptions turns the selected row into a topic listing query.
func (m *CategoriesModel) ListOptions() forum.ListOptions {
	e := m.entries[m.cursor]
	opts := forum.ListOptions{PrivateMessages: e.private}
	if e.category != nil {
		opts.Category = e.category.Name
	}
	return opts
}

func (m CategoriesModel) View() string {
	var s string
	s += lipgloss.NewStyle().Bold(true).Render("Categories") + "\n\n"

	for i, e := range m.entries {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.cursor {
			cursor = "> "
			style = style.Foreground(lipgloss.Color("86"))
		}

		count := ""
		if e.category != nil {
			count = lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf(" (%d)", e.category.TopicCount))
		} else {
			style = style.Italic(true)
		}
		s += fmt.Sprintf("%s%s%s\n", cursor, style.Render(e.label), count)
	}

	return s
}
