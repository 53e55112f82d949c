package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/glance/internal/logtail"
)

// handleLogTail refreshes the log pane, following the end of the file
// unless the user scrolled up.
func (m *Model) handleLogTail(msg logTailMsg) {
	if msg.err != nil {
		m.logView.SetContent("log unavailable: " + msg.err.Error())
		return
	}
	if !msg.changed && m.logView.TotalLineCount() > 0 {
		return
	}
	follow := m.logView.AtBottom() || m.logView.TotalLineCount() == 0
	m.logView.SetContent(m.formatLogLines(logtail.Filter(msg.lines, logtail.LevelInfo)))
	if follow {
		m.logView.GotoBottom()
	}
}

func (m Model) formatLogLines(lines []string) string {
	if len(lines) == 0 {
		return m.theme.Styles().FaintText.Render("no log output yet")
	}
	styles := m.theme.Styles()
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		e := logtail.Parse(line)
		if e.Level == logtail.LevelUnknown {
			b.WriteString(styles.MutedText.Render(truncate(line, m.width)))
			continue
		}
		b.WriteString(styles.FaintText.Render(e.Time))
		b.WriteByte(' ')
		b.WriteString(levelStyle(styles, e.Level).Render(levelLabel(e.Level)))
		b.WriteByte(' ')
		b.WriteString(styles.Text.Render(truncate(e.Message, max(1, m.width-14))))
	}
	return b.String()
}

func levelStyle(styles Styles, level logtail.Level) lipgloss.Style {
	switch level {
	case logtail.LevelError:
		return styles.DangerText
	case logtail.LevelWarn:
		return styles.WarningText
	case logtail.LevelDebug:
		return styles.FaintText
	default:
		return styles.InfoText
	}
}

func levelLabel(level logtail.Level) string {
	switch level {
	case logtail.LevelError:
		return "ERR"
	case logtail.LevelWarn:
		return "WRN"
	case logtail.LevelDebug:
		return "DBG"
	default:
		return "INF"
	}
}

func (m Model) renderLogs(l layout) string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	bg := NewBgStyle(m.theme.SurfaceAlt)
	title := bg.FillLine(bg.Space()+bg.Render("log", styles.AccentText.Bold(true)), m.width)
	if m.logTail == nil {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			lipgloss.NewStyle().Height(l.logHeight-1).Render(styles.FaintText.Render(" logging to stderr")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, m.logView.View())
}
