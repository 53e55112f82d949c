// Package ui provides the terminal photo browser for glance.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model holds all view state and is updated
// only from Update; background work (backend calls, thumbnail waits, log
// reads) runs as tea.Cmd functions that report back with messages. The UI
// never talks to the photo service directly: user operations go through the
// Session interface and everything shown on screen comes from state.Store
// snapshots.
//
// # Package Structure
//
//   - app.go: Model, messages, commands and the Run entry point
//   - input.go: key handling and the folder/search prompt
//   - layout.go: frame geometry, selection bookkeeping and text helpers
//   - view.go: header, photo list, notice line and footer
//   - preview.go: the thumbnail preview pane
//   - logs.go: the log pane fed by logtail
//   - help.go: the key binding overlay
//   - keys.go: key bindings (bubbles/key)
//   - theme.go, style_helpers.go: colors and background-safe rendering
//
// # Data Flow
//
// A ticker polls Store.Version. When it moves, the model fetches a snapshot
// and diffs it against the previous one:
//
//   - Folder changed: per-folder state (thumbnail states, preview,
//     selection) is dropped.
//   - Photo list changed: the visibility detector receives the new keys and
//     the selection stays on the same photo when it is still listed.
//
// # Thumbnails
//
// After every scroll, resize or list change the model asks the visibility
// detector which rows entered the window (plus its prefetch margin) for the
// first time and calls Thumbnails.Request for each. Requests within the
// loader's coalescing window become one batch. Each pending future is
// awaited in its own command; a failure marks the row failed and forgets
// the key, so the row is requested again once it scrolls back into view.
// Futures failed by a folder switch are ignored.
//
// # Key Bindings
//
//   - j/k, pgup/pgdn, g/G: move the selection
//   - f: find photos similar to the selected one
//   - +/-: raise or lower the similarity threshold
//   - esc: leave similarity mode
//   - o, [, ]: open a folder, walk the folder history
//   - /, t, s, r: search, cycle tag, cycle sort, reload
//   - i: index the folder
//   - L, T, ?, q: log pane, theme, help, quit
package ui
