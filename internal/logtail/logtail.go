package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Tail re-reads a log file only when it changed since the last read.
type Tail struct {
	path     string
	maxLines int

	mu      sync.Mutex
	size    int64
	modTime time.Time
	lines   []string
}

// NewTail returns a tail of the last maxLines of path.
func NewTail(path string, maxLines int) *Tail {
	return &Tail{path: path, maxLines: maxLines}
}

// Lines returns the tail of the file. The second result reports whether the
// file changed since the previous call.
func (t *Tail) Lines() ([]string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			changed := t.lines != nil
			t.lines, t.size, t.modTime = nil, 0, time.Time{}
			return nil, changed, nil
		}
		return t.lines, false, fmt.Errorf("stat log: %w", err)
	}
	if t.lines != nil && info.Size() == t.size && info.ModTime().Equal(t.modTime) {
		return t.lines, false, nil
	}
	lines, err := Read(t.path, t.maxLines)
	if err != nil {
		return t.lines, false, err
	}
	if lines == nil {
		lines = []string{}
	}
	t.lines, t.size, t.modTime = lines, info.Size(), info.ModTime()
	return lines, true, nil
}

// Level is the severity parsed from a log line.
type Level int

const (
	LevelUnknown Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// Entry is one parsed log line.
type Entry struct {
	Time    string
	Level   Level
	Message string
	Raw     string
}

// Parse splits a "15:04:05 INF message key=value" line. Lines that do not
// follow the format come back with LevelUnknown and the whole line as the
// message.
func Parse(line string) Entry {
	e := Entry{Raw: line, Message: line}
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 3 || !isClock(fields[0]) {
		return e
	}
	level := parseLevel(fields[1])
	if level == LevelUnknown {
		return e
	}
	e.Time = fields[0]
	e.Level = level
	e.Message = fields[2]
	return e
}

func isClock(s string) bool {
	_, err := time.Parse("15:04:05", s)
	return err == nil
}

func parseLevel(s string) Level {
	// tint abbreviates levels and appends offsets such as "WRN+2"
	if i := strings.IndexAny(s, "+-"); i > 0 {
		s = s[:i]
	}
	switch s {
	case "DBG", "DEBUG":
		return LevelDebug
	case "INF", "INFO":
		return LevelInfo
	case "WRN", "WARN":
		return LevelWarn
	case "ERR", "ERROR":
		return LevelError
	default:
		return LevelUnknown
	}
}

// Filter returns the lines at or above floor. Unparsed lines are kept when
// they follow a kept line, so multi-line messages stay together.
func Filter(lines []string, floor Level) []string {
	if floor <= LevelDebug {
		return lines
	}
	out := make([]string, 0, len(lines))
	keep := false
	for _, line := range lines {
		e := Parse(line)
		if e.Level != LevelUnknown {
			keep = e.Level >= floor
		}
		if keep {
			out = append(out, line)
		}
	}
	return out
}
