package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != defaultTheme {
		t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
	}
	if p.LastFolder != "" || len(p.History) != 0 {
		t.Fatalf("unexpected folder state: %#v", p)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	prefsDir := filepath.Join(home, ".config", "glance")
	if err := os.MkdirAll(prefsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	prefsFile := filepath.Join(prefsDir, "prefs.toml")
	content := `theme = "Slate"
last_folder = " /photos/2024 "
history = ["/photos/2024", "/photos/2023"]
last_output_folder = "/export"
`
	if err := os.WriteFile(prefsFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != "Slate" {
		t.Fatalf("Theme = %q, want %q", p.Theme, "Slate")
	}
	if p.LastFolder != "/photos/2024" || p.LastOutputFolder != "/export" {
		t.Fatalf("folders = %#v", p)
	}
	if !reflect.DeepEqual(p.History, []string{"/photos/2024", "/photos/2023"}) {
		t.Fatalf("History = %v", p.History)
	}
}

func TestSave_CreatesFileAndDirs(t *testing.T) {
	tmp := t.TempDir()
	prefsFile := filepath.Join(tmp, "subdir", "prefs.toml")

	p := Prefs{Theme: "Slate"}
	p.Visit("/a")
	if err := Save(prefsFile, p); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(prefsFile)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Theme != "Slate" || loaded.LastFolder != "/a" {
		t.Fatalf("loaded = %#v", loaded)
	}
}

func TestLoad_EmptyThemeFallsBackToDefault(t *testing.T) {
	tmp := t.TempDir()
	prefsFile := filepath.Join(tmp, "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("theme = \"\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load(prefsFile)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != defaultTheme {
		t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
	}
}

func TestLoad_InvalidTOMLFallsBackToDefault(t *testing.T) {
	tmp := t.TempDir()
	prefsFile := filepath.Join(tmp, "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("not valid toml {{{\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load(prefsFile)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Theme != defaultTheme {
		t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
	}
}

func TestVisit_MostRecentFirstDedupedBounded(t *testing.T) {
	var p Prefs
	for i := 0; i < 25; i++ {
		p.Visit(fmt.Sprintf("/f%02d", i))
	}
	if len(p.History) != MaxHistory {
		t.Fatalf("len(History) = %d, want %d", len(p.History), MaxHistory)
	}
	if p.History[0] != "/f24" || p.History[MaxHistory-1] != "/f05" {
		t.Fatalf("History = %v", p.History)
	}

	p.Visit("/f10")
	if p.History[0] != "/f10" || p.LastFolder != "/f10" {
		t.Fatalf("revisit not moved to front: %v", p.History[:3])
	}
	seen := map[string]bool{}
	for _, h := range p.History {
		if seen[h] {
			t.Fatalf("duplicate %q in history", h)
		}
		seen[h] = true
	}
	if len(p.History) != MaxHistory {
		t.Fatalf("len(History) = %d after revisit", len(p.History))
	}

	p.Visit("   ")
	if p.History[0] != "/f10" {
		t.Fatalf("blank folder recorded")
	}
}
