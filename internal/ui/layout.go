package ui

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"

	"github.com/five82/glance/internal/backend"
)

// Terminal size thresholds for responsive layouts.
const (
	// LayoutPreviewWidth is the minimum width to show the preview pane.
	LayoutPreviewWidth = 80

	// LayoutDetailWidth is the minimum width to show size and dimension columns.
	LayoutDetailWidth = 60

	// LayoutLogMinHeight is the smallest log pane.
	LayoutLogMinHeight = 5
)

const (
	headerHeight = 2
	noticeHeight = 1
	footerHeight = 1
)

// layout is the derived geometry of one frame.
type layout struct {
	bodyHeight    int
	listWidth     int
	listRows      int
	previewWidth  int
	previewHeight int
	logHeight     int
}

func (m Model) layout() layout {
	var l layout
	if m.showLogs {
		l.logHeight = max(LayoutLogMinHeight, m.height/3)
	}
	l.bodyHeight = max(1, m.height-headerHeight-noticeHeight-footerHeight-l.logHeight)
	// One row for the column titles.
	l.listRows = max(0, l.bodyHeight-1)
	l.listWidth = m.width
	if m.width >= LayoutPreviewWidth && l.bodyHeight >= 6 {
		l.previewWidth = m.width * 2 / 5
		l.listWidth = m.width - l.previewWidth
		l.previewHeight = l.bodyHeight
	}
	return l
}

func (m *Model) resizeLogView() {
	l := m.layout()
	m.logView.Width = m.width
	// Title row.
	m.logView.Height = max(0, l.logHeight-1)
}

// clampSelection keeps the selection in range and scrolled into view.
func (m *Model) clampSelection() {
	n := len(m.photos)
	if n == 0 {
		m.selected, m.offset = 0, 0
		return
	}
	m.selected = min(max(m.selected, 0), n-1)
	rows := m.layout().listRows
	if rows <= 0 {
		return
	}
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+rows {
		m.offset = m.selected - rows + 1
	}
	m.offset = min(max(m.offset, 0), max(0, n-rows))
}

func (m Model) selectedPhoto() (backend.Photo, bool) {
	if m.selected < 0 || m.selected >= len(m.photos) {
		return backend.Photo{}, false
	}
	return m.photos[m.selected], true
}

func photoPaths(photos []backend.Photo) []string {
	paths := make([]string, len(photos))
	for i, p := range photos {
		paths[i] = p.Path
	}
	return paths
}

func samePaths(a, b []backend.Photo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path {
			return false
		}
	}
	return true
}

// indexOfPath returns the index of path in photos, or fallback when absent.
func indexOfPath(photos []backend.Photo, path string, fallback int) int {
	if path == "" {
		return fallback
	}
	for i, p := range photos {
		if p.Path == path {
			return i
		}
	}
	return fallback
}

// truncate shortens s to width cells with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// truncateMiddle keeps both ends of a path visible.
func truncateMiddle(s string, width int) string {
	if ansi.StringWidth(s) <= width || width < 5 {
		return truncate(s, width)
	}
	r := []rune(s)
	half := (width - 1) / 2
	return string(r[:half]) + "…" + string(r[len(r)-(width-1-half):])
}

func humanSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
