package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/glance/internal/preview"
)

// previewCache holds the rendered preview of the selected photo. Rendering
// decodes and scales the thumbnail, so it runs in Update and not per frame.
type previewCache struct {
	key     string
	out     string
	err     error
	pending bool
}

func (m *Model) refreshPreview() {
	l := m.layout()
	p, ok := m.selectedPhoto()
	if !ok || l.previewWidth == 0 || m.thumbs == nil {
		m.preview = previewCache{}
		return
	}
	cols, rows := previewImageSize(l)
	k := fmt.Sprintf("%s|%dx%d", p.Path, cols, rows)
	if k == m.preview.key && !m.preview.pending {
		return
	}
	data, ok := m.thumbs.Cached(p.Path)
	if !ok {
		m.preview = previewCache{key: k, pending: true}
		return
	}
	out, err := preview.RenderPayload(data, cols, rows)
	m.preview = previewCache{key: k, out: out, err: err}
}

// previewImageSize is the image area inside the preview border, leaving
// room for the metadata lines below it.
func previewImageSize(l layout) (int, int) {
	return max(1, l.previewWidth-4), max(1, l.previewHeight-2-previewMetaLines)
}

const previewMetaLines = 4

func (m Model) renderPreview(l layout) string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	innerW := max(1, l.previewWidth-4)

	var body []string
	p, ok := m.selectedPhoto()
	cols, rows := previewImageSize(l)
	switch {
	case !ok:
		body = append(body, bg.Render("no photo selected", styles.FaintText))
	case m.preview.err != nil:
		body = append(body, bg.Render("preview unavailable", styles.DangerText))
	case m.preview.pending || m.preview.out == "":
		label := "loading thumbnail"
		if m.states[p.Path] == thumbFailed {
			label = "thumbnail failed"
		}
		body = append(body, bg.Render(label, styles.MutedText))
	default:
		body = append(body, m.preview.out)
	}
	image := lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, strings.Join(body, "\n"),
		lipgloss.WithWhitespaceBackground(bg.Color()))

	lines := []string{image}
	if ok {
		lines = append(lines,
			bg.FillLine(bg.Render(truncate(p.Name, innerW), styles.Text.Bold(true)), innerW),
			bg.FillLine(bg.Render(fmt.Sprintf("%dx%d  %s", p.Width, p.Height, humanSize(p.Size)), styles.MutedText), innerW),
			bg.FillLine(bg.Render(truncate(strings.Join(p.Tags, ", "), innerW), styles.InfoText), innerW),
			bg.FillLine(bg.Render(modifiedLabel(p.ModifiedTime()), styles.FaintText), innerW),
		)
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		BorderBackground(bg.Color()).
		Background(bg.Color()).
		Padding(0, 1).
		Width(l.previewWidth - 2).
		Height(l.previewHeight - 2)
	return border.Render(strings.Join(lines, "\n"))
}
