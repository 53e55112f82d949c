// Package thumbs acquires thumbnails from the photo service without flooding
// it.
//
// # Overview
//
// A folder can hold thousands of photos. The list only asks for thumbnails
// of rows that scroll into view, and this package turns those requests into
// as few backend calls as possible:
//
//   - Cache: path → data URI for the current folder session. Entries are
//     immutable; the whole cache is cleared on folder switch.
//   - Loader.Request: coalesces requests that arrive within a short batch
//     window (10ms) into one bulk lookup of already-generated thumbnails.
//   - Limiter: paths the bulk lookup did not return are generated one by one,
//     at most six at a time, waiters admitted first come first served.
//
// # Request Lifecycle
//
//	Request(path)
//	  ├─ cached            → resolved Future
//	  ├─ already pending   → the same Future
//	  └─ new               → joins batch, timer started if idle
//	batch window elapses   → ThumbnailsBatch(paths)
//	  ├─ present           → cache + resolve
//	  └─ absent / failure  → loadUncached: Acquire → Thumbnail → Release
//
// A path is in at most one of the cache, the pending batch, or an in-flight
// individual fetch. A failed fetch rejects only that path's future and
// removes it from the pending set, so a later Request retries it.
//
// # Sessions
//
// Reset clears the cache and fails outstanding futures with ErrReset. Each
// reset bumps an epoch; work started under an older epoch still runs but its
// result is never stored. Close fails outstanding futures with ErrClosed and
// cancels backend calls.
//
// # Concurrency
//
// All methods are safe for concurrent use. Futures are resolved exactly once
// and may be waited on from any goroutine.
package thumbs
