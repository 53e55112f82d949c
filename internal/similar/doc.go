// Package similar drives "find similar photos" while the embedding index is
// still being built.
//
// # Overview
//
// A similarity query against a partially built index returns partial
// results. The Controller re-runs the query as indexing advances so the
// result set improves on screen, then runs one authoritative query when
// indexing completes.
//
//   - Start: activate a search and issue the first query.
//   - Advance(current, total): on indexing progress, re-query once the
//     indexed count has grown by Stride (10) since the last re-query. A
//     non-empty result replaces the shown results and extends the partial
//     results notice.
//   - Finish: on indexing completion, reset the counters and issue a final
//     query; its results come with a success notice dismissed after ~5s.
//   - SetThreshold: debounced (300ms); a burst of edits runs one query with
//     the last value.
//   - Exit: drop the search, its notice, and any result still in flight.
//
// # Ordering
//
// Every issued query takes the next generation number. A result is applied
// only if its generation is still the latest, so a slow early query can
// never overwrite results of a later one.
//
// # Errors
//
// Progressive query failures are logged and ignored; the next stride or the
// completion will query again. Failures of initial, threshold and final
// queries are shown as an error notice.
package similar
