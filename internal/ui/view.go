package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/glance/internal/state"
)

// renderMain composes the frame: header, body, notice, optional logs, footer.
func (m Model) renderMain() string {
	l := m.layout()

	body := m.renderList(l)
	if l.previewWidth > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderPreview(l))
	}

	sections := []string{m.renderHeader(), body, m.renderNotice()}
	if l.logHeight > 0 {
		sections = append(sections, m.renderLogs(l))
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Background)).
		Width(m.width).
		Height(m.height).
		MaxHeight(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// renderHeader renders two lines: folder and filter, then service activity.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)
	snap := m.snapshot

	folder := snap.Folder
	if folder == "" {
		folder = "no folder (press o)"
	}
	top := []string{
		bg.Render("glance", styles.Logo),
		bg.Render(truncateMiddle(folder, max(10, m.width/2)), styles.Text),
	}
	if n := len(snap.Listing); snap.Folder != "" {
		top = append(top, bg.Render(fmt.Sprintf("%d photos", n), styles.MutedText))
	}
	if f := snap.Filter; f.Search != "" {
		top = append(top, bg.Render("/"+f.Search, styles.AccentText))
	}
	if snap.Filter.Tag != "" {
		top = append(top, bg.Render("#"+snap.Filter.Tag, styles.InfoText))
	}
	if label := m.thumbSummary(); label != "" {
		top = append(top, bg.Render(label, styles.FaintText))
	}
	if m.busy > 0 {
		top = append(top, m.spinner.View())
	}

	var bottom []string
	switch {
	case snap.IsOffline():
		bottom = append(bottom, bg.Render("● SERVICE UNREACHABLE", styles.DangerText))
	case snap.Import.Active:
		bottom = append(bottom, m.renderActivity(bg, styles, "Importing", snap.Import))
	case snap.Indexing.Active:
		bottom = append(bottom, m.renderActivity(bg, styles, "Indexing", snap.Indexing))
	case snap.HasIndexStatus:
		st := snap.IndexStatus
		label := fmt.Sprintf("%d/%d indexed", st.Indexed, st.Total)
		style := styles.MutedText
		if st.Total > 0 && st.Complete() {
			style = styles.SuccessText
		}
		bottom = append(bottom, bg.Render("● "+label, style))
	}
	if sim := snap.Similarity; sim.Active {
		label := fmt.Sprintf("similar ≥%d%%  %d matches", sim.ThresholdPercent, len(sim.Results))
		if sim.Loading {
			label += "  refining"
		}
		bottom = append(bottom, bg.Render(label, styles.AccentText))
	}
	if len(bottom) == 0 {
		bottom = append(bottom, bg.Render("idle", styles.FaintText))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Header.Width(m.width).Render(bg.Join(top, "  ")),
		styles.Header.Width(m.width).Render(strings.Join(bottom, sep)),
	)
}

// thumbSummary reports loader activity on wide terminals.
func (m Model) thumbSummary() string {
	if m.thumbs == nil || m.width < LayoutPreviewWidth {
		return ""
	}
	st := m.thumbs.Stats()
	if st.Requests == 0 {
		return ""
	}
	label := fmt.Sprintf("thumbs %d cached", st.Cached)
	if st.Active > 0 || st.Pending > 0 {
		label += fmt.Sprintf(" %d/%d fetching", st.Active, st.Capacity)
	}
	if st.Failures > 0 {
		label += fmt.Sprintf(" %d failed", st.Failures)
	}
	return label
}

func (m Model) renderActivity(bg BgStyle, styles Styles, label string, p state.Progress) string {
	bar := m.progress.ViewAs(float64(p.Percent()) / 100)
	text := fmt.Sprintf("%s %d/%d", label, p.Current, p.Total)
	if p.File != "" && m.width >= LayoutPreviewWidth {
		text += "  " + truncateMiddle(p.File, 40)
	}
	return bar + bg.Space() + bg.Render(text, styles.WarningText)
}

// renderList renders the photo rows, one per line.
func (m Model) renderList(l layout) string {
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	bg := NewBgStyle(m.theme.Background)
	detail := l.listWidth >= LayoutDetailWidth

	const badgeWidth = 10
	sizeWidth, dimWidth := 0, 0
	if detail {
		sizeWidth, dimWidth = 10, 11
	}
	nameWidth := max(1, l.listWidth-badgeWidth-sizeWidth-dimWidth-4)

	title := fmt.Sprintf("%-*s  %-*s", badgeWidth, "THUMB", nameWidth, "NAME")
	if detail {
		title += fmt.Sprintf("%*s%*s", sizeWidth, "SIZE", dimWidth, "DIMENSIONS")
	}
	lines := []string{bg.FillLine(bg.Render(" "+title, styles.FaintText.Bold(true)), l.listWidth)}

	if len(m.photos) == 0 {
		lines = append(lines, bg.FillLine(bg.Render(" "+m.emptyMessage(), styles.MutedText), l.listWidth))
	}
	end := min(m.offset+l.listRows, len(m.photos))
	ref := ""
	if m.snapshot.Similarity.Active {
		ref = m.snapshot.Similarity.Reference
	}
	for i := m.offset; i < end; i++ {
		p := m.photos[i]
		status := m.thumbStatus(p.Path)
		if p.Path == ref {
			status = "similar"
		}
		badge := styles.StatusStyle(status).Width(badgeWidth - 1).Render(status)
		// ◆ marks photos that already have an embedding
		glyph := " "
		if p.HasEmbedding {
			glyph = "◆"
		}
		row := fmt.Sprintf("%s %-*s", glyph, nameWidth, truncate(p.Name, nameWidth))
		if detail {
			row += fmt.Sprintf("%*s%*s", sizeWidth, humanSize(p.Size), dimWidth, fmt.Sprintf("%dx%d", p.Width, p.Height))
		}
		if i == m.selected {
			row = styles.Selected.Width(l.listWidth - badgeWidth - 1).Render(row)
		} else {
			row = bg.Render(row, styles.Text)
		}
		lines = append(lines, bg.FillLine(bg.Space()+badge+bg.Space()+row, l.listWidth))
	}

	return lipgloss.NewStyle().
		Background(bg.Color()).
		Width(l.listWidth).
		Height(l.bodyHeight).
		MaxHeight(l.bodyHeight).
		Render(strings.Join(lines, "\n"))
}

func (m Model) emptyMessage() string {
	switch {
	case m.snapshot.Folder == "":
		return "Open a folder with o"
	case m.snapshot.LastError != nil && len(m.snapshot.Listing) == 0:
		return "Could not load photos: " + m.snapshot.LastError.Error()
	case m.snapshot.Similarity.Active && m.snapshot.Similarity.Loading:
		return "Searching for similar photos..."
	case m.snapshot.Similarity.Active:
		return "No similar photos at this threshold"
	default:
		return "No photos"
	}
}

func (m Model) thumbStatus(path string) string {
	switch m.states[path] {
	case thumbLoading:
		return "loading"
	case thumbLoaded:
		return "loaded"
	case thumbFailed:
		return "failed"
	default:
		return "pending"
	}
}

// renderNotice shows the store notice, or the last operation outcome.
func (m Model) renderNotice() string {
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	bg := NewBgStyle(m.theme.Background)

	n := m.snapshot.Notice
	if n.Kind != state.NoticeNone {
		text := n.Message
		if n.Total > 0 {
			text += fmt.Sprintf(" (%d/%d)", n.Current, n.Total)
		}
		kind := n.Kind.String()
		return bg.FillLine(bg.Space()+styles.StatusStyle(kind).Render(kind)+bg.Space()+
			bg.Render(truncate(text, m.width-12), styles.Text), m.width)
	}
	if m.flash.text != "" {
		style := styles.MutedText
		if m.flash.err {
			style = styles.DangerText
		}
		return bg.FillLine(bg.Space()+bg.Render(truncate(m.flash.text, m.width-2), style), m.width)
	}
	return bg.FillLine("", m.width)
}

// renderFooter shows the input prompt while open, short help otherwise.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.mode != inputNone {
		return styles.Footer.Width(m.width).Render(m.input.View())
	}
	return styles.Footer.Width(m.width).Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

func modifiedLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return "modified " + t.Format("2006-01-02 15:04")
}
