package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"g2gmail/internal/util"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	displayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingTop(1)

	awakeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

const cursorPrefix = "> "

// displayView draws the glasses display: a fixed box of rows lines plus the
// container's status line.
func (m *Model) displayView() string {
	var body string
	switch {
	case m.nativeList():
		body = m.list.View()
	case m.screen.isList():
		body = m.cursorListView()
	case m.screen == screenReader || m.screen == screenText:
		body = m.clampLines(m.pane.View())
	}
	box := displayStyle.Width(m.width + 2).Height(m.rows).Render(body)
	return box + "\n" + statusStyle.Render(util.PadRight(m.status, m.width))
}

func (m *Model) cursorListView() string {
	out := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		l = util.Truncate(l, m.width)
		if strings.HasPrefix(l, cursorPrefix) {
			l = cursorStyle.Render(l)
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func (m *Model) clampLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = util.Truncate(l, m.width)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) footer() string {
	var parts []string
	if m.companion.Text != "" {
		parts = append(parts, m.companion.Mode+": "+m.companion.Text)
	}
	if m.awake {
		parts = append(parts, awakeStyle.Render("awake"))
	}
	if m.blurred {
		parts = append(parts, "(background)")
	}
	line := strings.Join(parts, "  ")
	return footerStyle.Render(line + "\n" + m.keys.help())
}
