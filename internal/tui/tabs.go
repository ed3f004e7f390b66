package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab is one selectable pane in the tab bar.
type Tab struct {
	ID    string
	Title string
}

// TabActivatedMsg is emitted when the active tab changes.
type TabActivatedMsg struct{ ID string }

// TabBarModel renders a row of tabs with exactly one active at all times.
// Activation is idempotent: re-activating the current tab changes nothing.
type TabBarModel struct {
	tabs   []Tab
	active int
	width  int
}

func NewTabBarModel(tabs []Tab) TabBarModel {
	return TabBarModel{tabs: tabs}
}

// ActiveID returns the identifier of the single active tab.
func (m TabBarModel) ActiveID() string {
	if len(m.tabs) == 0 {
		return ""
	}
	return m.tabs[m.active].ID
}

// IsActive reports whether the tab with the given id is the active one.
func (m TabBarModel) IsActive(id string) bool {
	return m.ActiveID() == id
}

// ActiveCount returns how many tabs are currently active. It exists to make
// the one-active invariant checkable; by construction it returns 1 for any
// non-empty bar.
func (m TabBarModel) ActiveCount() int {
	count := 0
	for _, t := range m.tabs {
		if m.IsActive(t.ID) {
			count++
		}
	}
	return count
}

// Activate selects the tab with the given id. Unknown ids are ignored.
func (m TabBarModel) Activate(id string) (TabBarModel, tea.Cmd) {
	for i, t := range m.tabs {
		if t.ID == id {
			if i == m.active {
				return m, nil
			}
			m.active = i
			return m, activatedCmd(id)
		}
	}
	return m, nil
}

// Next cycles to the following tab, wrapping around at the end.
func (m TabBarModel) Next() (TabBarModel, tea.Cmd) {
	if len(m.tabs) < 2 {
		return m, nil
	}
	m.active = (m.active + 1) % len(m.tabs)
	return m, activatedCmd(m.tabs[m.active].ID)
}

func activatedCmd(id string) tea.Cmd {
	return func() tea.Msg { return TabActivatedMsg{ID: id} }
}

func (m TabBarModel) Update(msg tea.Msg) (TabBarModel, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
	}
	return m, nil
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("28")).
			Padding(0, 2)
	inactiveTabStyle = lipgloss.NewStyle().
				Faint(true).
				Padding(0, 2)
)

func (m TabBarModel) View() string {
	var rendered []string
	for i, t := range m.tabs {
		if i == m.active {
			rendered = append(rendered, activeTabStyle.Render(t.Title))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(t.Title))
		}
	}
	row := strings.Join(rendered, " ")
	if m.width > 0 {
		return lipgloss.NewStyle().Width(m.width).Render(row)
	}
	return row
}
