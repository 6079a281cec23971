package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	tabContainer = lipgloss.NewStyle().Padding(1, 1)
	activeTab    = lipgloss.NewStyle().Foreground(primary).Bold(true)
	inactiveTab  = lipgloss.NewStyle().Foreground(secondary)
	tabDivider   = lipgloss.NewStyle().Foreground(faded)
)

type tabs struct {
	names []string
	i     int

	Width int
	Info  string
}

func newTabs(names []string) tabs {
	return tabs{names: names}
}

func (m tabs) View() string {
	rendered := make([]string, len(m.names))
	for i, t := range m.names {
		r := inactiveTab
		if i == m.i {
			r = activeTab
		}
		rendered[i] = r.Render(t)
	}
	w := lipgloss.Width
	left := strings.Join(rendered, tabDivider.Render(" | "))
	right := m.Info
	space := lipgloss.NewStyle().Width(m.Width - 2 - w(left) - w(right)).Render("")
	return tabContainer.Render(lipgloss.JoinHorizontal(lipgloss.Center, left, space, right)) + "\n"
}

func (m tabs) Value() int {
	return m.i
}

func (m *tabs) Set(i int) {
	m.i = clamp(i, 0, len(m.names)-1)
}
