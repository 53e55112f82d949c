package state

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/five82/glance/internal/backend"
)

// NoticeKind classifies the status notice shown under the list.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeInfo
	NoticePartial
	NoticeSuccess
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeInfo:
		return "info"
	case NoticePartial:
		return "partial"
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "none"
	}
}

// Notice is the single status notification the UI shows.
type Notice struct {
	ID        uint64
	Kind      NoticeKind
	Message   string
	Current   int
	Total     int
	CreatedAt time.Time
}

// Progress is the last applied progress update of one event stream.
type Progress struct {
	Active  bool
	Current int
	Total   int
	File    string
}

// Percent returns completion in the range 0..100.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	pct := p.Current * 100 / p.Total
	return min(max(pct, 0), 100)
}

// Similarity is the active "find similar" query and its results.
type Similarity struct {
	Active           bool
	Reference        string
	ThresholdPercent int
	Results          []backend.Photo
	Loading          bool
}

// Filter is the listing query beyond the folder.
type Filter struct {
	Search    string
	SortBy    string
	SortOrder string
	Tag       string
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Folder              string
	Filter              Filter
	Listing             []backend.Photo
	Tags                []string
	Similarity          Similarity
	Indexing            Progress
	Import              Progress
	IndexStatus         backend.IndexingStatus
	HasIndexStatus      bool
	Notice              Notice
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // consecutive failed listing loads
	Version             uint64
}

// IsOffline returns true when the service has been unreachable for multiple loads.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Photos returns what the list shows: similarity results while a similarity
// search is active, the folder listing otherwise.
func (s Snapshot) Photos() []backend.Photo {
	if s.Similarity.Active {
		return s.Similarity.Results
	}
	return s.Listing
}

// Store coordinates concurrent updates to the snapshot. The zero value is
// ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	noticeID uint64
}

// SetFolder switches the active folder. Everything scoped to the previous
// folder is dropped.
func (s *Store) SetFolder(folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Folder = strings.TrimSpace(folder)
	s.snapshot.Listing = nil
	s.snapshot.Tags = nil
	s.snapshot.Filter.Tag = ""
	s.snapshot.Similarity = Similarity{}
	s.snapshot.Indexing = Progress{}
	s.snapshot.Import = Progress{}
	s.snapshot.IndexStatus = backend.IndexingStatus{}
	s.snapshot.HasIndexStatus = false
	s.snapshot.Notice = Notice{}
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	s.touch()
}

// SetFilter replaces the listing filter.
func (s *Store) SetFilter(f Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Filter = f
	s.touch()
}

// UpdateListing replaces the folder listing. When err is non-nil the previous
// listing is kept but the error is recorded for visibility.
func (s *Store) UpdateListing(photos []backend.Photo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateListingLocked(photos, err)
}

// UpdateListingFor is UpdateListing for a load started against folder. The
// result is dropped if the active folder changed meanwhile; it reports
// whether it was applied.
func (s *Store) UpdateListingFor(folder string, photos []backend.Photo, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Folder != folder {
		return false
	}
	s.updateListingLocked(photos, err)
	return true
}

func (s *Store) updateListingLocked(photos []backend.Photo, err error) {
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		s.touch()
		return
	}

	s.snapshot.Listing = clonePhotos(photos)
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
	s.touch()
}

// SetTags replaces the folder's tag list.
func (s *Store) SetTags(tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Tags = slices.Clone(tags)
	s.touch()
}

// SetIndexStatus records the indexed/total counts reported by the service.
func (s *Store) SetIndexStatus(st backend.IndexingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.IndexStatus = st
	s.snapshot.HasIndexStatus = true
	s.touch()
}

// StartSimilarity activates a similarity search for reference.
func (s *Store) StartSimilarity(reference string, thresholdPercent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Similarity = Similarity{
		Active:           true,
		Reference:        reference,
		ThresholdPercent: thresholdPercent,
		Loading:          true,
	}
	s.touch()
}

// SetThreshold updates the threshold of the active similarity search.
func (s *Store) SetThreshold(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snapshot.Similarity.Active {
		return
	}
	s.snapshot.Similarity.ThresholdPercent = percent
	s.snapshot.Similarity.Loading = true
	s.touch()
}

// SetResults replaces the similarity results. It is ignored when no search is
// active.
func (s *Store) SetResults(photos []backend.Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snapshot.Similarity.Active {
		return
	}
	s.snapshot.Similarity.Results = clonePhotos(photos)
	s.snapshot.Similarity.Loading = false
	s.touch()
}

// SetSimilarityLoading toggles the loading flag of the active search.
func (s *Store) SetSimilarityLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snapshot.Similarity.Active {
		return
	}
	s.snapshot.Similarity.Loading = loading
	s.touch()
}

// ExitSimilarity leaves similarity mode.
func (s *Store) ExitSimilarity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Similarity = Similarity{}
	s.touch()
}

// SetIndexing records an indexing progress update.
func (s *Store) SetIndexing(current, total int, file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Indexing = Progress{Active: true, Current: current, Total: total, File: file}
	s.touch()
}

// ClearIndexing removes the indexing progress.
func (s *Store) ClearIndexing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Indexing = Progress{}
	s.touch()
}

// SetImport records an import progress update.
func (s *Store) SetImport(current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Import = Progress{Active: true, Current: current, Total: total}
	s.touch()
}

// ClearImport removes the import progress.
func (s *Store) ClearImport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Import = Progress{}
	s.touch()
}

// ShowNotice replaces the current notice and returns its id. A partial
// notice shown while another partial notice is up extends it in place and
// keeps its id.
func (s *Store) ShowNotice(kind NoticeKind, message string, current, total int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &s.snapshot.Notice
	if kind == NoticePartial && n.Kind == NoticePartial {
		n.Message = message
		n.Current = current
		n.Total = total
		s.touch()
		return n.ID
	}
	s.noticeID++
	*n = Notice{
		ID:        s.noticeID,
		Kind:      kind,
		Message:   message,
		Current:   current,
		Total:     total,
		CreatedAt: time.Now(),
	}
	s.touch()
	return n.ID
}

// DismissNotice removes the notice if it is still the one identified by id.
func (s *Store) DismissNotice(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Notice.ID != id || id == 0 {
		return false
	}
	s.snapshot.Notice = Notice{}
	s.touch()
	return true
}

// ClearNotice removes whatever notice is shown.
func (s *Store) ClearNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Notice = Notice{}
	s.touch()
}

// Version returns a counter bumped on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Version
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Listing = clonePhotos(s.snapshot.Listing)
	snap.Tags = slices.Clone(s.snapshot.Tags)
	snap.Similarity.Results = clonePhotos(s.snapshot.Similarity.Results)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func (s *Store) touch() {
	s.snapshot.Version++
}

func clonePhotos(photos []backend.Photo) []backend.Photo {
	if len(photos) == 0 {
		return nil
	}
	dup := make([]backend.Photo, len(photos))
	for i, p := range photos {
		p.Tags = slices.Clone(p.Tags)
		dup[i] = p
	}
	return dup
}
