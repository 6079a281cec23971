package tui

import "github.com/charmbracelet/lipgloss"

const (
	primary   = lipgloss.Color("#fff")
	secondary = lipgloss.Color("#888")
	faded     = lipgloss.Color("#555")

	blue   = lipgloss.Color("#4db7ff")
	green  = lipgloss.Color("#00a352")
	red    = lipgloss.Color("#c42912")
	yellow = lipgloss.Color("#c4b810")
	orange = lipgloss.Color("#c27510")
	purple = lipgloss.Color("#9d4dff")
)

var (
	taskTime  = lipgloss.NewStyle().Foreground(secondary)
	taskTitle = lipgloss.NewStyle().Bold(true)

	statusError = lipgloss.NewStyle().Foreground(red)
	statusInfo  = lipgloss.NewStyle().Foreground(secondary)

	helpStyle = lipgloss.NewStyle().Foreground(faded)
)

// tagColors maps each task tag to its accent color.
var tagColors = map[string]lipgloss.Color{
	"School":   blue,
	"Study":    green,
	"Chat":     yellow,
	"Break":    orange,
	"Coaching": purple,
	"Other":    faded,
}

func tagStyle(tag string) lipgloss.Style {
	color, ok := tagColors[tag]
	if !ok {
		color = faded
	}
	return lipgloss.NewStyle().Foreground(color)
}
