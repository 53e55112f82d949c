package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_RespectsLevelAndColor(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, false)
	logger.Debug("hidden")
	logger.Info("shown", "path", "/p/a.jpg")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "path=/p/a.jpg") {
		t.Fatalf("output = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("colour codes written with color disabled: %q", out)
	}
}

func TestOpenFile_AppendsAndTagsSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "glance.log")

	logger, f, err := OpenFile(path, slog.LevelDebug)
	if err != nil {
		t.Fatalf("OpenFile returned error: %v", err)
	}
	logger, id := WithSession(logger)
	logger.Info("first")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logger, f, err = OpenFile(path, slog.LevelDebug)
	if err != nil {
		t.Fatalf("second OpenFile returned error: %v", err)
	}
	logger.Info("second")
	_ = f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("log file not appended: %q", out)
	}
	if id == "" || !strings.Contains(out, "session="+id) {
		t.Fatalf("session id %q missing from %q", id, out)
	}
}
