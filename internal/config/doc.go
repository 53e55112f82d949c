// Package config handles loading and parsing glance configuration files.
//
// # Overview
//
// glance reads a small TOML file to find the photo service and to tune the
// thumbnail pipeline and the similarity refinement. Every field is optional.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/glance/config.toml (default)
//  3. If the config file doesn't exist, fall back to built-in defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - API endpoint: 127.0.0.1:7488
//   - Log directory: ~/.local/share/glance/logs (log file glance.log)
//   - Log level: info
//   - Thumbnail concurrency: 6, batch window: 10ms, prefetch rows: 10
//   - Progress throttle: 200ms
//   - Refinement stride: 10 photos
//   - Threshold debounce: 300ms, success notice: 5000ms
//   - Default similarity threshold: 80%
//   - Auto-index on folder open: true
//   - Request timeout: none
//
// # TOML Format
//
//	api_bind = "127.0.0.1:7488"
//	log_dir = "~/.local/share/glance/logs"
//	log_level = "debug"
//	thumbnail_concurrency = 6
//	batch_window_ms = 10
//	prefetch_rows = 10
//	progress_throttle_ms = 200
//	refine_stride = 10
//	threshold_debounce_ms = 300
//	success_dismiss_ms = 5000
//	default_threshold = 80
//	auto_index = true
//	request_timeout_s = 0
//
// Non-positive durations and counts fall back to their defaults;
// prefetch_rows accepts 0. default_threshold is clamped to 0..100.
//
// # Path Expansion
//
//   - Absolute paths: used as-is
//   - Tilde paths: expanded to the home directory
//   - Relative paths: converted to absolute based on the current directory
package config
