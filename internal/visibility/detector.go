// Package visibility decides which list rows should request a thumbnail.
//
// A Detector watches a list of keys against the rows currently on screen
// (plus a prefetch margin). Each key is reported the first time it
// intersects that window and never again, so scrolling back and forth does
// not refetch. Forget re-arms a key whose fetch failed; it is reported again
// the next time it enters the window.
package visibility

import "sync"

// Detector tracks which items have already been reported as visible.
type Detector struct {
	mu       sync.Mutex
	margin   int
	items    []string
	observed map[string]bool
	// keys forgotten while still on screen; re-armed once they leave
	lingering map[string]bool
	window    [2]int
}

// New returns a detector that treats margin rows above and below the viewport
// as visible.
func New(margin int) *Detector {
	if margin < 0 {
		margin = 0
	}
	return &Detector{
		margin:    margin,
		observed:  map[string]bool{},
		lingering: map[string]bool{},
		window:    [2]int{-1, -1},
	}
}

// SetItems replaces the observed list. Keys already reported stay reported.
func (d *Detector) SetItems(keys []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items[:0:0], keys...)
}

// Visible reports the keys that newly intersect rows first..last (inclusive,
// before the margin is applied). Each key is returned at most once until it
// is forgotten.
func (d *Detector) Visible(first, last int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 || last < first {
		return nil
	}
	lo := max(first-d.margin, 0)
	hi := min(last+d.margin, len(d.items)-1)
	if lo > hi {
		return nil
	}

	for key := range d.lingering {
		if !d.inWindow(key, lo, hi) {
			delete(d.lingering, key)
			delete(d.observed, key)
		}
	}
	d.window = [2]int{lo, hi}

	var fresh []string
	for i := lo; i <= hi; i++ {
		key := d.items[i]
		if d.observed[key] {
			continue
		}
		d.observed[key] = true
		fresh = append(fresh, key)
	}
	return fresh
}

// Forget re-arms key after a failed fetch. If the key is on screen it is
// reported again only after it has left the window and come back.
func (d *Detector) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.observed[key] {
		return
	}
	if d.window[0] >= 0 && d.inWindow(key, d.window[0], d.window[1]) {
		d.lingering[key] = true
		return
	}
	delete(d.observed, key)
}

// Observed reports whether key has been reported.
func (d *Detector) Observed(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observed[key]
}

// Count returns the number of keys reported so far.
func (d *Detector) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observed)
}

// Reset forgets every key, for a new folder session.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = nil
	d.observed = map[string]bool{}
	d.lingering = map[string]bool{}
	d.window = [2]int{-1, -1}
}

func (d *Detector) inWindow(key string, lo, hi int) bool {
	for i := lo; i <= hi && i < len(d.items); i++ {
		if d.items[i] == key {
			return true
		}
	}
	return false
}
