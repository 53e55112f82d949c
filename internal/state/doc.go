// Package state provides thread-safe state management for glance.
//
// # Overview
//
// The Store is the single place where background work meets rendering. The
// session loads listings into it, the progress listener writes import and
// indexing progress, the similarity controller writes results and notices,
// and the UI reads Snapshots on its own schedule.
//
// # Architecture
//
//	Producers:                          Consumer (UI):
//	┌──────────────────────┐           ┌─────────────────┐
//	│ session (listing)    │           │                 │
//	│ progress.Listener    │──────────→│ store.Snapshot()│
//	│ similar.Controller   │  (mutex)  │      ↓          │
//	└──────────────────────┘           │  render         │
//	                                   └─────────────────┘
//
// # Core Types
//
// Snapshot:
//   - Folder, listing filter, listing, tags
//   - Similarity: active flag, reference, threshold, results
//   - Indexing and Import progress, last indexing status
//   - Notice: the single status line (info, partial, success, error)
//   - LastError / ConsecutiveFailures for the offline indicator
//   - Version, bumped on every change so the UI can skip redraws
//
// # Update Semantics
//
// UpdateListing keeps the previous listing when err is non-nil and records
// the error, the same way a failed poll leaves the last good data on screen.
// SetFolder drops everything scoped to the previous folder.
//
// Notices carry an id. A partial notice shown while one is already up is
// extended in place and keeps its id; anything else gets a new id.
// DismissNotice only removes the notice it was given the id of, so a delayed
// dismiss never removes a newer notice.
//
// # Defensive Copying
//
// Snapshot clones photo slices (including each photo's tags) and the tag
// list, so the UI can hold a snapshot across frames without racing writers.
//
// # Testing Considerations
//
// The zero Store is ready to use:
//
//	var s state.Store
//	s.SetFolder("/pics")
package state
