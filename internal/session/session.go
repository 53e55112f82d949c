// Package session implements the user-level operations of glance: opening a
// folder, reloading and filtering its listing, starting and steering a
// similarity search, triggering indexing, and walking folder history.
//
// A Session ties together the backend, the state store, the thumbnail
// loader and the similarity controller. Folder switches go through
// OpenFolder so that every folder-scoped component is reset together.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/logging"
	"github.com/five82/glance/internal/prefs"
	"github.com/five82/glance/internal/similar"
	"github.com/five82/glance/internal/state"
)

var (
	// ErrNoFolder is returned by operations that need an open folder.
	ErrNoFolder = errors.New("no folder open")
	// ErrHistoryEnd is returned by Back and Forward at either end of history.
	ErrHistoryEnd = errors.New("no further folder in history")
)

// Backend is the part of the photo service a session drives.
type Backend interface {
	ImportFolder(ctx context.Context, folder string) error
	QueryPhotos(ctx context.Context, query backend.PhotoQuery) ([]backend.Photo, error)
	Tags(ctx context.Context, folder string) ([]string, error)
	TriggerIndexing(ctx context.Context, folder string) error
	IndexingStatus(ctx context.Context, folder string) (backend.IndexingStatus, error)
}

// Thumbnails is reset on folder switch. It is implemented by *thumbs.Loader.
type Thumbnails interface {
	Reset()
}

// Similarity is implemented by *similar.Controller.
type Similarity interface {
	Start(q similar.Query)
	SetThreshold(percent int)
	Exit()
	Query() (similar.Query, bool)
}

// Options tune a Session.
type Options struct {
	AutoIndex        bool
	DefaultThreshold int
	PrefsPath        string
	Logger           *slog.Logger
	// OnFolderChange runs after folder-scoped state was reset and before the
	// new folder is loaded.
	OnFolderChange func(folder string)
}

// SortMode is one listing order the UI can cycle through.
type SortMode struct {
	By    string
	Order string
	Label string
}

// SortModes lists the listing orders in cycle order.
var SortModes = []SortMode{
	{By: "name", Order: "asc", Label: "name ↑"},
	{By: "modified", Order: "desc", Label: "newest"},
	{By: "modified", Order: "asc", Label: "oldest"},
	{By: "size", Order: "desc", Label: "largest"},
}

// Session holds the user's browsing state.
type Session struct {
	backend Backend
	store   *state.Store
	thumbs  Thumbnails
	similar Similarity
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	prefs   prefs.Prefs
	histPos int
	sortIdx int
}

// New returns a session. thumbs and sim may be nil in tests that do not
// exercise them.
func New(b Backend, store *state.Store, thumbs Thumbnails, sim Similarity, p prefs.Prefs, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.DefaultThreshold <= 0 || opts.DefaultThreshold > 100 {
		opts.DefaultThreshold = 80
	}
	s := &Session{
		backend: b,
		store:   store,
		thumbs:  thumbs,
		similar: sim,
		opts:    opts,
		logger:  opts.Logger,
		prefs:   p,
	}
	store.SetFilter(state.Filter{SortBy: SortModes[0].By, SortOrder: SortModes[0].Order})
	return s
}

// Prefs returns a copy of the current preferences.
func (s *Session) Prefs() prefs.Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.prefs
	p.History = append([]string(nil), s.prefs.History...)
	return p
}

// OpenFolder switches to folder: it resets folder-scoped state, records the
// folder in history, imports it, loads its listing and tags, and starts
// indexing when the folder is not fully indexed and auto-index is on.
func (s *Session) OpenFolder(ctx context.Context, folder string) error {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return fmt.Errorf("folder required")
	}
	s.mu.Lock()
	s.prefs.Visit(folder)
	s.histPos = 0
	s.mu.Unlock()
	s.savePrefs()
	return s.open(ctx, folder)
}

// Back opens the previous folder in history.
func (s *Session) Back(ctx context.Context) (string, error) {
	return s.walk(ctx, 1)
}

// Forward opens the next folder in history, undoing Back.
func (s *Session) Forward(ctx context.Context) (string, error) {
	return s.walk(ctx, -1)
}

func (s *Session) walk(ctx context.Context, step int) (string, error) {
	s.mu.Lock()
	pos := s.histPos + step
	if pos < 0 || pos >= len(s.prefs.History) {
		s.mu.Unlock()
		return "", ErrHistoryEnd
	}
	s.histPos = pos
	folder := s.prefs.History[pos]
	s.prefs.LastFolder = folder
	s.mu.Unlock()
	s.savePrefs()
	return folder, s.open(ctx, folder)
}

func (s *Session) open(ctx context.Context, folder string) error {
	if s.thumbs != nil {
		s.thumbs.Reset()
	}
	if s.similar != nil {
		s.similar.Exit()
	}
	s.store.SetFolder(folder)
	if s.opts.OnFolderChange != nil {
		s.opts.OnFolderChange(folder)
	}
	s.logger.Info("opening folder", "folder", folder)

	if err := s.backend.ImportFolder(ctx, folder); err != nil {
		s.store.UpdateListingFor(folder, nil, err)
		return fmt.Errorf("import folder: %w", err)
	}
	if err := s.Reload(ctx); err != nil {
		return err
	}

	if tags, err := s.backend.Tags(ctx, folder); err != nil {
		s.logger.Warn("tag lookup failed", "folder", folder, "error", err)
	} else {
		s.store.SetTags(tags)
	}

	status, err := s.backend.IndexingStatus(ctx, folder)
	if err != nil {
		s.logger.Warn("indexing status lookup failed", "folder", folder, "error", err)
		return nil
	}
	s.store.SetIndexStatus(status)
	if s.opts.AutoIndex && status.Total > 0 && !status.Complete() {
		s.logger.Info("starting background indexing", "folder", folder, "indexed", status.Indexed, "total", status.Total)
		if err := s.backend.TriggerIndexing(ctx, folder); err != nil {
			s.logger.Warn("trigger indexing failed", "folder", folder, "error", err)
		}
	}
	return nil
}

// Reload re-queries the listing of the active folder with the current
// filter. It satisfies progress.Reloader.
func (s *Session) Reload(ctx context.Context) error {
	snap := s.store.Snapshot()
	if snap.Folder == "" {
		return ErrNoFolder
	}
	q := backend.PhotoQuery{
		Folder:    snap.Folder,
		Search:    snap.Filter.Search,
		SortBy:    snap.Filter.SortBy,
		SortOrder: snap.Filter.SortOrder,
	}
	if snap.Filter.Tag != "" {
		q.Tags = []string{snap.Filter.Tag}
	}
	photos, err := s.backend.QueryPhotos(ctx, q)
	s.store.UpdateListingFor(snap.Folder, photos, err)
	if err != nil {
		return fmt.Errorf("load photos: %w", err)
	}
	return nil
}

// SetSearch filters the listing by name and reloads it.
func (s *Session) SetSearch(ctx context.Context, search string) error {
	f := s.store.Snapshot().Filter
	f.Search = strings.TrimSpace(search)
	s.store.SetFilter(f)
	return s.Reload(ctx)
}

// CycleSort moves to the next sort mode and reloads the listing.
func (s *Session) CycleSort(ctx context.Context) (SortMode, error) {
	s.mu.Lock()
	s.sortIdx = (s.sortIdx + 1) % len(SortModes)
	mode := SortModes[s.sortIdx]
	s.mu.Unlock()

	f := s.store.Snapshot().Filter
	f.SortBy = mode.By
	f.SortOrder = mode.Order
	s.store.SetFilter(f)
	return mode, s.Reload(ctx)
}

// CycleTag filters by the next tag of the folder, wrapping back to no tag
// filter after the last one.
func (s *Session) CycleTag(ctx context.Context) (string, error) {
	snap := s.store.Snapshot()
	next := ""
	if len(snap.Tags) > 0 {
		idx := -1
		for i, tag := range snap.Tags {
			if tag == snap.Filter.Tag {
				idx = i
				break
			}
		}
		if idx+1 < len(snap.Tags) {
			next = snap.Tags[idx+1]
		}
	}
	f := snap.Filter
	f.Tag = next
	s.store.SetFilter(f)
	return next, s.Reload(ctx)
}

// FindSimilar starts a similarity search for reference in the active folder.
// The threshold of a running search is kept.
func (s *Session) FindSimilar(reference string) error {
	if s.similar == nil {
		return fmt.Errorf("similarity search unavailable")
	}
	folder := s.store.Snapshot().Folder
	if folder == "" {
		return ErrNoFolder
	}
	threshold := s.opts.DefaultThreshold
	if q, ok := s.similar.Query(); ok {
		threshold = q.ThresholdPercent
	}
	s.similar.Start(similar.Query{Folder: folder, Reference: reference, ThresholdPercent: threshold})
	return nil
}

// AdjustThreshold moves the threshold of the active search by delta percent.
func (s *Session) AdjustThreshold(delta int) (int, bool) {
	if s.similar == nil {
		return 0, false
	}
	q, ok := s.similar.Query()
	if !ok {
		return 0, false
	}
	next := min(max(q.ThresholdPercent+delta, 0), 100)
	s.similar.SetThreshold(next)
	return next, true
}

// ExitSimilar leaves similarity mode.
func (s *Session) ExitSimilar() {
	if s.similar != nil {
		s.similar.Exit()
	}
}

// TriggerIndexing starts embedding indexing of the active folder.
func (s *Session) TriggerIndexing(ctx context.Context) error {
	folder := s.store.Snapshot().Folder
	if folder == "" {
		return ErrNoFolder
	}
	if err := s.backend.TriggerIndexing(ctx, folder); err != nil {
		return fmt.Errorf("trigger indexing: %w", err)
	}
	return nil
}

// SetTheme records the UI theme in preferences.
func (s *Session) SetTheme(name string) {
	s.mu.Lock()
	s.prefs.Theme = name
	s.mu.Unlock()
	s.savePrefs()
}

func (s *Session) savePrefs() {
	if strings.TrimSpace(s.opts.PrefsPath) == "" {
		return
	}
	if err := prefs.Save(s.opts.PrefsPath, s.Prefs()); err != nil {
		s.logger.Warn("save preferences failed", "path", s.opts.PrefsPath, "error", err)
	}
}
