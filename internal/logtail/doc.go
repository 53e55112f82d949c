// Package logtail reads the tail of glance's session log for the UI log pane.
//
// # Overview
//
// Read extracts the last N lines of a file with a ring buffer, so memory
// stays O(N) whatever the file size. Tail wraps Read for polling callers: it
// stats the file and re-reads only when its size or modification time
// changed. Parse and Filter understand the tint line format glance writes
// ("15:04:05 INF message key=value") so the pane can colour lines by level
// and hide debug noise.
//
// # Ring Buffer Algorithm
//
//	1. Allocate ring buffer of size maxLines
//	2. For each line in file:
//	   - Store line at current index
//	   - Increment index (wrapping at maxLines)
//	   - Track total lines seen
//	3. If total < maxLines:
//	   - Return first 'count' entries from buffer
//	4. If total >= maxLines:
//	   - Return buffer starting from current index (oldest line)
//
// # Error Handling
//
// Read returns nil, nil for non-existent files (graceful degradation).
// Other errors (permission denied, I/O errors) are returned wrapped. Tail
// keeps its previous lines when a re-read fails.
//
// Parse never fails: lines that do not follow the format come back with
// LevelUnknown and are attached to the preceding entry by Filter.
package logtail
