package progress_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/progress"
	"github.com/five82/glance/internal/schedule"
	"github.com/five82/glance/internal/similar"
	"github.com/five82/glance/internal/state"
)

type countingReloader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingReloader) Reload(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type countingSearcher struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSearcher) FindSimilar(context.Context, backend.SimilarQuery) ([]backend.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return []backend.Photo{{Path: "hit"}}, nil
}

func (s *countingSearcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func indexing(current, total int, done bool) backend.Event {
	return backend.Event{Type: backend.EventIndexingProgress, Progress: backend.Progress{Current: current, Total: total, Done: done}}
}

func importing(current, total int, done bool) backend.Event {
	return backend.Event{Type: backend.EventImportProgress, Progress: backend.Progress{Current: current, Total: total, Done: done}}
}

func TestListener_ThrottlesNonCompletionPerStream(t *testing.T) {
	store := &state.Store{}
	clock := schedule.NewManualClock(time.Time{})
	l := progress.NewListener(store, nil, nil, progress.Options{Clock: clock})
	ctx := context.Background()

	applied := 0
	for i := 0; i < 50; i++ {
		if l.Handle(ctx, indexing(i, 50, false)) {
			applied++
		}
		clock.Advance(20 * time.Millisecond)
	}
	// 50 events over 1s: at most one per 200ms
	if applied > 5 || applied < 4 {
		t.Fatalf("applied %d indexing updates over 1s, want 4..5", applied)
	}

	// the import stream has its own window
	if !l.Handle(ctx, importing(1, 10, false)) {
		t.Fatalf("first import event throttled by indexing window")
	}
	if l.Handle(ctx, importing(2, 10, false)) {
		t.Fatalf("second import event in window applied")
	}
	if got := store.Snapshot().Import; !got.Active || got.Current != 1 {
		t.Fatalf("import = %#v", got)
	}
}

func TestListener_CompletionNeverThrottled(t *testing.T) {
	store := &state.Store{}
	clock := schedule.NewManualClock(time.Time{})
	reloader := &countingReloader{}
	l := progress.NewListener(store, nil, reloader, progress.Options{Clock: clock})
	ctx := context.Background()

	l.Handle(ctx, indexing(1, 10, false))
	l.Handle(ctx, importing(1, 10, false))
	if !l.Handle(ctx, importing(10, 10, true)) {
		t.Fatalf("import completion throttled")
	}
	if !l.Handle(ctx, indexing(10, 10, true)) {
		t.Fatalf("indexing completion throttled")
	}

	snap := store.Snapshot()
	if snap.Indexing.Active || snap.Import.Active {
		t.Fatalf("progress not cleared: %#v %#v", snap.Indexing, snap.Import)
	}
	if !snap.HasIndexStatus || !snap.IndexStatus.Complete() {
		t.Fatalf("index status = %#v", snap.IndexStatus)
	}
	// no active search: the listing is reloaded instead
	if got := reloader.count(); got != 1 {
		t.Fatalf("reloads = %d, want 1", got)
	}
	// window reset by completion
	if !l.Handle(ctx, indexing(0, 10, false)) {
		t.Fatalf("first event after completion throttled")
	}
}

func TestListener_IndexingStreamDrivesRefinement(t *testing.T) {
	store := &state.Store{}
	clock := schedule.NewManualClock(time.Time{})
	searcher := &countingSearcher{}
	ctrl := similar.New(context.Background(), searcher, store, similar.Options{Clock: clock})
	t.Cleanup(ctrl.Close)
	reloader := &countingReloader{}
	l := progress.NewListener(store, ctrl, reloader, progress.Options{Clock: clock})
	ctx := context.Background()

	ctrl.Start(similar.Query{Folder: "/p", Reference: "/p/ref.jpg", ThresholdPercent: 80})
	ctrl.Wait()

	for current := 0; current <= 100; current += 10 {
		l.Handle(ctx, indexing(current, 100, false))
		ctrl.Wait()
		clock.Advance(250 * time.Millisecond)
	}
	l.Handle(ctx, indexing(100, 100, true))
	ctrl.Wait()

	st := ctrl.Stats()
	if st.Progressive > 11 {
		t.Fatalf("progressive = %d, want <= 11", st.Progressive)
	}
	if st.Final != 1 {
		t.Fatalf("final = %d, want exactly 1", st.Final)
	}
	if got := searcher.count(); got != 1+st.Progressive+1 {
		t.Fatalf("backend calls = %d, want initial + %d progressive + final", got, st.Progressive)
	}
	if got := reloader.count(); got != 0 {
		t.Fatalf("listing reloaded %d times while a search was active", got)
	}
	if store.Snapshot().Notice.Kind != state.NoticeSuccess {
		t.Fatalf("notice = %#v, want success", store.Snapshot().Notice)
	}
}

func TestListener_FolderChangedReloads(t *testing.T) {
	store := &state.Store{}
	reloader := &countingReloader{err: errors.New("offline")}
	l := progress.NewListener(store, nil, reloader, progress.Options{})

	l.Handle(context.Background(), backend.Event{Type: backend.EventFolderChanged})
	if got := reloader.count(); got != 1 {
		t.Fatalf("reloads = %d, want 1", got)
	}
	if l.Handle(context.Background(), backend.Event{Type: "unknown"}) {
		t.Fatalf("unknown event reported as applied")
	}
}

func TestListener_RunStopsOnClose(t *testing.T) {
	store := &state.Store{}
	l := progress.NewListener(store, nil, nil, progress.Options{})
	events := make(chan backend.Event, 2)
	events <- importing(3, 9, false)
	close(events)

	if err := l.Run(context.Background(), events); err != nil {
		t.Fatalf("Run returned %v, want nil on closed channel", err)
	}
	if got := store.Snapshot().Import.Current; got != 3 {
		t.Fatalf("import current = %d, want 3", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx, make(chan backend.Event)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
}

func TestListener_ResetClearsProgress(t *testing.T) {
	store := &state.Store{}
	clock := schedule.NewManualClock(time.Time{})
	l := progress.NewListener(store, nil, nil, progress.Options{Clock: clock})
	ctx := context.Background()

	l.Handle(ctx, indexing(1, 10, false))
	l.Reset()
	if store.Snapshot().Indexing.Active {
		t.Fatalf("indexing progress survived Reset")
	}
	if !l.Handle(ctx, indexing(2, 10, false)) {
		t.Fatalf("event after Reset throttled")
	}
}
