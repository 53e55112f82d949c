package ui

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/logging"
	"github.com/five82/glance/internal/session"
	"github.com/five82/glance/internal/state"
	"github.com/five82/glance/internal/thumbs"
	"github.com/five82/glance/internal/visibility"
)

type fakeSession struct {
	mu        sync.Mutex
	opened    []string
	similar   []string
	threshold []int
	searches  []string
	theme     string
	exited    int
	backErr   error
}

func (f *fakeSession) OpenFolder(_ context.Context, folder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, folder)
	return nil
}

func (f *fakeSession) Back(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return "", f.backErr
}

func (f *fakeSession) Forward(context.Context) (string, error) { return "", session.ErrHistoryEnd }
func (f *fakeSession) Reload(context.Context) error            { return nil }

func (f *fakeSession) SetSearch(_ context.Context, search string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, search)
	return nil
}

func (f *fakeSession) CycleSort(context.Context) (session.SortMode, error) {
	return session.SortModes[1], nil
}

func (f *fakeSession) CycleTag(context.Context) (string, error) { return "beach", nil }

func (f *fakeSession) FindSimilar(reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.similar = append(f.similar, reference)
	return nil
}

func (f *fakeSession) AdjustThreshold(delta int) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = append(f.threshold, delta)
	return 80 + delta, true
}

func (f *fakeSession) ExitSimilar() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exited++
}

func (f *fakeSession) TriggerIndexing(context.Context) error { return nil }

func (f *fakeSession) SetTheme(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.theme = name
}

// fakeSource serves a tiny PNG for every path except those in fail.
type fakeSource struct {
	mu      sync.Mutex
	data    string
	fail    map[string]bool
	singles map[string]int
}

func (s *fakeSource) ThumbnailsBatch(_ context.Context, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		if !s.fail[p] {
			out[p] = s.data
		}
	}
	return out, nil
}

func (s *fakeSource) Thumbnail(_ context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.singles[path]++
	if s.fail[path] {
		return "", errors.New("decode failed")
	}
	return s.data, nil
}

func (s *fakeSource) singleCalls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.singles[path]
}

func testPNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(40 * y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func testPhotos(folder string, n int) []backend.Photo {
	photos := make([]backend.Photo, n)
	for i := range photos {
		name := fmt.Sprintf("%03d.jpg", i)
		photos[i] = backend.Photo{Name: name, Path: folder + "/" + name, Size: 2048, Width: 40, Height: 30}
	}
	return photos
}

type fixture struct {
	model   Model
	store   *state.Store
	session *fakeSession
	source  *fakeSource
	visible *visibility.Detector
}

func newFixture(t *testing.T, photos int, fail ...string) *fixture {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	src := &fakeSource{data: testPNG(t), fail: map[string]bool{}, singles: map[string]int{}}
	for _, p := range fail {
		src.fail[p] = true
	}
	loader := thumbs.NewLoader(ctx, src, thumbs.Options{BatchWindow: time.Millisecond})
	t.Cleanup(loader.Close)

	store := &state.Store{}
	store.SetFolder("/p")
	store.UpdateListingFor("/p", testPhotos("/p", photos), nil)

	f := &fixture{
		store:   store,
		session: &fakeSession{},
		source:  src,
		visible: visibility.New(0),
	}
	f.model = New(ctx, Options{
		Store:   store,
		Session: f.session,
		Thumbs:  loader,
		Visible: f.visible,
		Logger:  logging.Discard(),
	})
	f.send(t, tea.WindowSizeMsg{Width: 100, Height: 30})
	f.send(t, snapshotMsg(store.Snapshot()))
	return f
}

// send delivers msg and runs every command it produces to completion,
// feeding the results back in.
func (f *fixture) send(t *testing.T, msg tea.Msg) {
	t.Helper()
	queue := []tea.Msg{msg}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 1000 {
			t.Fatalf("message loop did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		updated, cmd := f.model.Update(next)
		f.model = updated.(Model)
		queue = append(queue, run(cmd)...)
	}
}

func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, run(c)...)
		}
		return out
	case tea.QuitMsg:
		return nil
	default:
		return []tea.Msg{msg}
	}
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_RequestsOnlyVisibleRows(t *testing.T) {
	f := newFixture(t, 100)
	rows := f.model.layout().listRows
	if rows <= 0 {
		t.Fatalf("listRows = %d", rows)
	}
	if got := f.visible.Count(); got != rows {
		t.Fatalf("observed = %d, want %d", got, rows)
	}
	for i, p := range f.model.photos {
		want := "pending"
		if i < rows {
			want = "loaded"
		}
		if got := f.model.thumbStatus(p.Path); got != want {
			t.Fatalf("row %d status = %q, want %q", i, got, want)
		}
	}
}

func TestModel_FailedThumbnailRetriesOnReentry(t *testing.T) {
	bad := "/p/002.jpg"
	f := newFixture(t, 100, bad)
	if got := f.model.thumbStatus(bad); got != "failed" {
		t.Fatalf("status = %q, want failed", got)
	}
	if n := f.source.singleCalls(bad); n != 1 {
		t.Fatalf("fetches = %d, want 1", n)
	}

	// Still on screen: no retry until it leaves and comes back.
	f.send(t, keyPress("j"))
	if n := f.source.singleCalls(bad); n != 1 {
		t.Fatalf("fetches after move = %d, want 1", n)
	}

	f.send(t, keyPress("G"))
	f.send(t, keyPress("g"))
	if n := f.source.singleCalls(bad); n != 2 {
		t.Fatalf("fetches after re-entry = %d, want 2", n)
	}
}

func TestModel_FolderSwitchDropsRowState(t *testing.T) {
	f := newFixture(t, 10)
	f.send(t, keyPress("j"))
	f.send(t, keyPress("j"))
	if f.model.selected != 2 {
		t.Fatalf("selected = %d, want 2", f.model.selected)
	}

	f.visible.Reset()
	f.store.SetFolder("/q")
	f.send(t, snapshotMsg(f.store.Snapshot()))
	if f.model.selected != 0 || len(f.model.photos) != 0 {
		t.Fatalf("selected = %d photos = %d after switch", f.model.selected, len(f.model.photos))
	}
	if len(f.model.states) != 0 {
		t.Fatalf("thumbnail states survived the switch: %d", len(f.model.states))
	}
}

func TestModel_SelectionFollowsPhotoAcrossReorder(t *testing.T) {
	f := newFixture(t, 10)
	for range 3 {
		f.send(t, keyPress("j"))
	}
	want := f.model.photos[3].Path

	photos := testPhotos("/p", 10)
	for i, j := 0, len(photos)-1; i < j; i, j = i+1, j-1 {
		photos[i], photos[j] = photos[j], photos[i]
	}
	f.store.UpdateListingFor("/p", photos, nil)
	f.send(t, snapshotMsg(f.store.Snapshot()))

	p, ok := f.model.selectedPhoto()
	if !ok || p.Path != want {
		t.Fatalf("selected = %q, want %q", p.Path, want)
	}
}

func TestModel_KeysReachSession(t *testing.T) {
	f := newFixture(t, 5)
	f.send(t, keyPress("j"))
	f.send(t, keyPress("f"))
	f.send(t, keyPress("+"))
	f.send(t, keyPress("-"))
	f.send(t, keyPress("T"))

	s := f.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.similar) != 1 || s.similar[0] != "/p/001.jpg" {
		t.Fatalf("similar = %v", s.similar)
	}
	if fmt.Sprint(s.threshold) != "[5 -5]" {
		t.Fatalf("threshold deltas = %v", s.threshold)
	}
	if s.theme != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", s.theme)
	}
	if f.model.busy != 0 {
		t.Fatalf("busy = %d after operations finished", f.model.busy)
	}
}

func TestModel_ExitOnlyInSimilarityMode(t *testing.T) {
	f := newFixture(t, 3)
	f.send(t, keyPress("esc"))
	if f.session.exited != 0 {
		t.Fatalf("exit called outside similarity mode")
	}

	f.store.StartSimilarity("/p/000.jpg", 80)
	f.send(t, snapshotMsg(f.store.Snapshot()))
	f.send(t, keyPress("esc"))
	if f.session.exited != 1 {
		t.Fatalf("exited = %d, want 1", f.session.exited)
	}
}

func TestModel_PromptsOpenFolderAndSearch(t *testing.T) {
	f := newFixture(t, 3)

	updated, _ := f.model.Update(keyPress("o"))
	f.model = updated.(Model)
	if f.model.mode != inputFolder {
		t.Fatalf("mode = %v, want folder prompt", f.model.mode)
	}
	f.model.input.SetValue("  /other ")
	f.send(t, keyPress("enter"))

	updated, _ = f.model.Update(keyPress("/"))
	f.model = updated.(Model)
	f.model.input.SetValue("sunset")
	f.send(t, keyPress("enter"))

	updated, _ = f.model.Update(keyPress("/"))
	f.model = updated.(Model)
	f.send(t, keyPress("esc"))
	if f.model.mode != inputNone {
		t.Fatalf("esc did not close the prompt")
	}

	s := f.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.opened) != 1 || s.opened[0] != "/other" {
		t.Fatalf("opened = %v", s.opened)
	}
	if len(s.searches) != 1 || s.searches[0] != "sunset" {
		t.Fatalf("searches = %v", s.searches)
	}
}

func TestModel_OperationOutcomes(t *testing.T) {
	f := newFixture(t, 3)

	f.send(t, keyPress("]"))
	if f.model.flash.err || f.model.flash.text != session.ErrHistoryEnd.Error() {
		t.Fatalf("flash = %+v, want quiet history end", f.model.flash)
	}

	f.session.backErr = errors.New("import folder: boom")
	f.send(t, keyPress("["))
	if !f.model.flash.err || !strings.Contains(f.model.flash.text, "boom") {
		t.Fatalf("flash = %+v, want error", f.model.flash)
	}

	f.send(t, keyPress("s"))
	if f.model.flash.text != "sorted by "+session.SortModes[1].Label {
		t.Fatalf("flash = %q", f.model.flash.text)
	}
}

func TestModel_View(t *testing.T) {
	f := newFixture(t, 3)
	f.store.SetIndexStatus(backend.IndexingStatus{Total: 3, Indexed: 1})
	f.store.ShowNotice(state.NoticePartial, "indexing paused", 1, 3)
	f.send(t, snapshotMsg(f.store.Snapshot()))

	view := f.model.View()
	for _, want := range []string{"glance", "/p", "000.jpg", "1/3 indexed", "indexing paused", "loaded"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	f.send(t, keyPress("?"))
	if !strings.Contains(f.model.View(), "Keyboard Shortcuts") {
		t.Fatalf("help overlay not shown")
	}
	f.send(t, keyPress("x"))
	if f.model.showHelp {
		t.Fatalf("any key should close help")
	}
}

func TestModel_HeaderSummarizesThumbnails(t *testing.T) {
	f := newFixture(t, 3, "/p/001.jpg")

	header := f.model.renderHeader()
	for _, want := range []string{"thumbs 2 cached", "1 failed"} {
		if !strings.Contains(header, want) {
			t.Fatalf("header missing %q:\n%s", want, header)
		}
	}

	f.send(t, tea.WindowSizeMsg{Width: 60, Height: 30})
	if strings.Contains(f.model.renderHeader(), "thumbs") {
		t.Fatalf("thumbnail summary shown at width 60")
	}
}

func TestModel_NarrowWindowHidesPreview(t *testing.T) {
	f := newFixture(t, 3)
	if f.model.layout().previewWidth == 0 {
		t.Fatalf("preview hidden at width 100")
	}
	if f.model.preview.out == "" {
		t.Fatalf("preview not rendered for a loaded thumbnail")
	}
	f.send(t, tea.WindowSizeMsg{Width: 60, Height: 30})
	if f.model.layout().previewWidth != 0 {
		t.Fatalf("preview shown at width 60")
	}
}
