package ui

import (
	"testing"

	"github.com/five82/glance/internal/backend"
)

func TestLayout(t *testing.T) {
	cases := []struct {
		name        string
		width       int
		height      int
		logs        bool
		wantRows    int
		wantPreview bool
	}{
		{"wide", 120, 40, false, 35, true},
		{"narrow", 70, 40, false, 35, false},
		{"with logs", 120, 40, true, 22, true},
		{"tiny", 120, 5, false, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Model{width: tc.width, height: tc.height, showLogs: tc.logs}
			l := m.layout()
			if l.listRows != tc.wantRows {
				t.Fatalf("listRows = %d, want %d", l.listRows, tc.wantRows)
			}
			if (l.previewWidth > 0) != tc.wantPreview {
				t.Fatalf("previewWidth = %d, want preview %v", l.previewWidth, tc.wantPreview)
			}
			if l.listWidth+l.previewWidth != tc.width {
				t.Fatalf("widths %d+%d != %d", l.listWidth, l.previewWidth, tc.width)
			}
		})
	}
}

func TestClampSelectionScrolls(t *testing.T) {
	m := Model{width: 60, height: 14, photos: make([]backend.Photo, 50)}
	rows := m.layout().listRows

	m.selected = 30
	m.clampSelection()
	if m.offset != 30-rows+1 {
		t.Fatalf("offset = %d, want %d", m.offset, 30-rows+1)
	}
	m.selected = 2
	m.clampSelection()
	if m.offset != 2 {
		t.Fatalf("offset = %d, want 2", m.offset)
	}
	m.selected = 99
	m.clampSelection()
	if m.selected != 49 || m.offset != 50-rows {
		t.Fatalf("selected = %d offset = %d", m.selected, m.offset)
	}
}

func TestTruncateMiddle(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"/short", 10, "/short"},
		{"/home/user/Pictures/2024", 11, "/home…/2024"},
		{"abcdef", 3, "ab…"},
	}
	for _, tc := range cases {
		if got := truncateMiddle(tc.in, tc.width); got != tc.want {
			t.Errorf("truncateMiddle(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func TestIndexOfPath(t *testing.T) {
	photos := []backend.Photo{{Path: "/a"}, {Path: "/b"}}
	if got := indexOfPath(photos, "/b", 0); got != 1 {
		t.Fatalf("indexOfPath(/b) = %d", got)
	}
	if got := indexOfPath(photos, "/gone", 1); got != 1 {
		t.Fatalf("missing path should keep fallback, got %d", got)
	}
}
