package similar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/schedule"
	"github.com/five82/glance/internal/state"
)

// Defaults for Options fields left zero.
const (
	DefaultStride       = 10
	DefaultDebounce     = 300 * time.Millisecond
	DefaultDismissAfter = 5 * time.Second
)

// Searcher runs similarity queries.
type Searcher interface {
	FindSimilar(ctx context.Context, query backend.SimilarQuery) ([]backend.Photo, error)
}

// Options tune a Controller.
type Options struct {
	Stride       int
	Debounce     time.Duration
	DismissAfter time.Duration
	Clock        schedule.Clock
	Logger       *slog.Logger
}

// Query identifies an active similarity search.
type Query struct {
	Folder           string
	Reference        string
	ThresholdPercent int
}

// Stats counts queries since the controller was created.
type Stats struct {
	Issued      int
	Initial     int
	Threshold   int
	Progressive int
	Final       int
	Applied     int
	Stale       int
	Failed      int
}

type queryKind int

const (
	kindInitial queryKind = iota
	kindThreshold
	kindProgressive
	kindFinal
)

func (k queryKind) String() string {
	switch k {
	case kindInitial:
		return "initial"
	case kindThreshold:
		return "threshold"
	case kindProgressive:
		return "progressive"
	case kindFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Controller owns the active similarity search. It re-queries as the
// embedding index grows, debounces threshold edits, and applies only the
// result of the most recently issued query.
type Controller struct {
	ctx      context.Context
	searcher Searcher
	store    *state.Store
	clock    schedule.Clock
	logger   *slog.Logger
	stride   int
	dismiss  time.Duration
	debounce *schedule.Debouncer
	wg       sync.WaitGroup

	mu         sync.Mutex
	active     bool
	query      Query
	gen        uint64
	lastRefine int
	indexing   bool
	current    int
	total      int
	noticeID   uint64
	dismissT   schedule.Timer
	stats      Stats
}

// New returns a controller writing results and notices to store.
func New(ctx context.Context, searcher Searcher, store *state.Store, opts Options) *Controller {
	if opts.Stride <= 0 {
		opts.Stride = DefaultStride
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.DismissAfter <= 0 {
		opts.DismissAfter = DefaultDismissAfter
	}
	if opts.Clock == nil {
		opts.Clock = schedule.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Controller{
		ctx:      ctx,
		searcher: searcher,
		store:    store,
		clock:    opts.Clock,
		logger:   opts.Logger,
		stride:   opts.Stride,
		dismiss:  opts.DismissAfter,
	}
	c.debounce = schedule.NewDebouncer(opts.Clock, opts.Debounce, c.thresholdSettled)
	return c
}

// Start activates a search for q.Reference and issues the first query. A
// search already active is replaced.
func (c *Controller) Start(q Query) {
	q.ThresholdPercent = clampPercent(q.ThresholdPercent)
	c.debounce.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopDismissLocked()
	c.active = true
	c.query = q
	c.lastRefine = c.current
	c.store.StartSimilarity(q.Reference, q.ThresholdPercent)
	c.issueLocked(kindInitial)
}

// SetThreshold changes the threshold of the active search. The query runs
// once edits have settled for the debounce delay.
func (c *Controller) SetThreshold(percent int) {
	percent = clampPercent(percent)
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.query.ThresholdPercent = percent
	c.store.SetThreshold(percent)
	c.mu.Unlock()
	c.debounce.Trigger()
}

// Exit ends the search. Queries still in flight are discarded when they
// return.
func (c *Controller) Exit() {
	c.debounce.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.active = false
	c.gen++
	c.lastRefine = 0
	c.query = Query{}
	c.stopDismissLocked()
	if c.noticeID != 0 {
		c.store.DismissNotice(c.noticeID)
		c.noticeID = 0
	}
	c.store.ExitSimilarity()
}

// Reset ends any active search and forgets indexing progress. It is called
// when the browsed folder changes.
func (c *Controller) Reset() {
	c.Exit()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexing = false
	c.current = 0
	c.total = 0
	c.lastRefine = 0
}

// Active reports whether a search is active.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Query returns the active search.
func (c *Controller) Query() (Query, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query, c.active
}

// Advance records indexing progress. While a search is active it re-queries
// each time the indexed count has grown by at least the stride since the
// last re-query.
func (c *Controller) Advance(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexing = true
	c.current = current
	c.total = total
	if !c.active {
		return
	}
	if current-c.lastRefine < c.stride {
		return
	}
	c.lastRefine = current
	c.issueLocked(kindProgressive)
}

// Finish handles indexing completion. Refinement counters are reset and, if
// a search is active, one final query is issued. It reports whether it did.
func (c *Controller) Finish() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexing = false
	c.lastRefine = 0
	c.current = 0
	c.total = 0
	if !c.active {
		return false
	}
	c.issueLocked(kindFinal)
	return true
}

// Wait blocks until every issued query has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close ends any active search and waits for in-flight queries.
func (c *Controller) Close() {
	c.Exit()
	c.wg.Wait()
}

// Stats returns query counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) thresholdSettled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.issueLocked(kindThreshold)
}

func (c *Controller) issueLocked(kind queryKind) {
	c.gen++
	gen := c.gen
	q := c.query
	current, total := c.current, c.total

	c.stats.Issued++
	switch kind {
	case kindInitial:
		c.stats.Initial++
	case kindThreshold:
		c.stats.Threshold++
	case kindProgressive:
		c.stats.Progressive++
	case kindFinal:
		c.stats.Final++
	}
	if kind != kindProgressive {
		c.store.SetSimilarityLoading(true)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		photos, err := c.searcher.FindSimilar(c.ctx, backend.SimilarQuery{
			Folder:    q.Folder,
			Reference: q.Reference,
			Threshold: backend.ThresholdFromPercent(q.ThresholdPercent),
		})
		c.apply(gen, kind, photos, err, current, total)
	}()
}

func (c *Controller) apply(gen uint64, kind queryKind, photos []backend.Photo, err error, current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || gen != c.gen {
		c.stats.Stale++
		c.logger.Debug("discarding stale similarity result", "kind", kind.String(), "generation", gen, "latest", c.gen)
		return
	}

	if err != nil {
		c.stats.Failed++
		if kind == kindProgressive {
			c.logger.Warn("progressive similarity query failed", "reference", c.query.Reference, "error", err)
			return
		}
		c.logger.Error("similarity query failed", "kind", kind.String(), "reference", c.query.Reference, "error", err)
		c.store.SetSimilarityLoading(false)
		c.stopDismissLocked()
		c.noticeID = c.store.ShowNotice(state.NoticeError, fmt.Sprintf("Similarity search failed: %v", err), 0, 0)
		return
	}

	c.stats.Applied++
	switch kind {
	case kindProgressive:
		if len(photos) == 0 {
			return
		}
		c.store.SetResults(photos)
		c.showPartialLocked(len(photos), current, total)
	case kindFinal:
		c.store.SetResults(photos)
		c.stopDismissLocked()
		id := c.store.ShowNotice(state.NoticeSuccess,
			fmt.Sprintf("Indexing complete: %d similar photos", len(photos)), 0, 0)
		c.noticeID = id
		c.dismissT = c.clock.AfterFunc(c.dismiss, func() {
			c.store.DismissNotice(id)
		})
	default:
		c.store.SetResults(photos)
		if c.indexing {
			c.showPartialLocked(len(photos), c.current, c.total)
		}
	}
	c.logger.Debug("similarity results applied", "kind", kind.String(), "results", len(photos))
}

func (c *Controller) showPartialLocked(results, current, total int) {
	msg := fmt.Sprintf("Partial results (%d): %d of %d photos indexed", results, current, total)
	c.noticeID = c.store.ShowNotice(state.NoticePartial, msg, current, total)
}

func (c *Controller) stopDismissLocked() {
	if c.dismissT != nil {
		c.dismissT.Stop()
		c.dismissT = nil
	}
}

func clampPercent(p int) int {
	return min(max(p, 0), 100)
}
