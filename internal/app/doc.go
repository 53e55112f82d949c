// Package app provides the orchestration layer for the glance application.
//
// # Overview
//
// This package wires together configuration, logging, the photo service
// client, the state store and the UI. It is the composition root: every
// long-lived component is built here and handed to the packages that use it.
//
// # Architecture
//
//  1. Load glance configuration from ~/.config/glance/config.toml
//  2. Open the session log at <log_dir>/glance.log
//  3. Load user preferences (theme, folder history)
//  4. Build the backend client and a Runtime on top of it
//  5. Run the event pump and the TUI under one errgroup
//
// # Components
//
//   - app.go: Runtime construction and the Run entry point
//   - pump.go: Event pump feeding the service's event stream to the listener
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        Read glance config
//	       ├─────> logging.OpenFile()   Session log
//	       ├─────> backend.NewClient()  HTTP client
//	       ├─────> NewRuntime()         Store, loader, controller, session, listener
//	       ├─────> PumpEvents()         Event stream -> progress.Listener
//	       └─────> ui.Run()             Start TUI (blocks)
//
//	NewRuntime():
//	┌─────────────────────────────────────────────┐
//	│ state.Store                                 │
//	│  ├─> thumbs.Loader       (service)          │
//	│  ├─> similar.Controller  (service, store)   │
//	│  ├─> session.Session     (all of the above) │
//	│  └─> progress.Listener   (store, controller,│
//	│                           session)          │
//	└─────────────────────────────────────────────┘
//
// # Event Pump
//
// The pump opens one subscription to /api/events and hands the events to the
// progress listener until the context ends or the server closes the stream.
// A subscription that cannot be opened is logged and not retried; the
// browser keeps working without progress indicators.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Configuration file invalid
//   - Log file cannot be opened
//   - Backend client initialization failure
//
// Recoverable errors (logged, session continues):
//   - Event subscription failure
//   - Listing, tag and status lookups (surfaced in the UI)
//
// # Folder Switches
//
// The session calls back into the runtime whenever the active folder
// changes, so the listener's throttle windows and the visibility detector
// start fresh with the new folder.
package app
