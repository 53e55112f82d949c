package ui

import "testing"

func TestNextThemeCycles(t *testing.T) {
	seen := map[string]bool{}
	name := ThemeNames()[0]
	for range ThemeNames() {
		seen[name] = true
		name = NextTheme(name)
	}
	if name != ThemeNames()[0] {
		t.Fatalf("cycle ended at %q, want %q", name, ThemeNames()[0])
	}
	if len(seen) != len(ThemeNames()) {
		t.Fatalf("visited %d themes, want %d", len(seen), len(ThemeNames()))
	}
	if got := NextTheme("unknown"); got != ThemeNames()[0] {
		t.Fatalf("NextTheme(unknown) = %q", got)
	}
}

func TestGetThemeFallsBack(t *testing.T) {
	if got := GetTheme("missing").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(missing) = %q, want Nightfox", got)
	}
}

func TestThemesCoverEveryStatus(t *testing.T) {
	statuses := []string{"pending", "loading", "loaded", "failed", "indexed", "info", "partial", "success", "error", "similar"}
	for _, name := range ThemeNames() {
		theme := GetTheme(name)
		for _, s := range statuses {
			if theme.StatusColors[s] == "" {
				t.Errorf("%s: no color for status %q", name, s)
			}
		}
	}
}
