package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds glance's settings.
type Config struct {
	APIBind              string
	LogDir               string
	LogLevel             string
	ThumbnailConcurrency int
	BatchWindowMS        int
	PrefetchRows         int
	ProgressThrottleMS   int
	RefineStride         int
	ThresholdDebounceMS  int
	SuccessDismissMS     int
	DefaultThreshold     int
	AutoIndex            bool
	RequestTimeoutS      int
}

const (
	defaultConfigPath           = "~/.config/glance/config.toml"
	defaultLogDir               = "~/.local/share/glance/logs"
	defaultAPIBind              = "127.0.0.1:7488"
	defaultLogLevel             = "info"
	defaultThumbnailConcurrency = 6
	defaultBatchWindowMS        = 10
	defaultPrefetchRows         = 10
	defaultProgressThrottleMS   = 200
	defaultRefineStride         = 10
	defaultThresholdDebounceMS  = 300
	defaultSuccessDismissMS     = 5000
	defaultThreshold            = 80
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBind:              defaultAPIBind,
		LogDir:               mustExpand(defaultLogDir),
		LogLevel:             defaultLogLevel,
		ThumbnailConcurrency: defaultThumbnailConcurrency,
		BatchWindowMS:        defaultBatchWindowMS,
		PrefetchRows:         defaultPrefetchRows,
		ProgressThrottleMS:   defaultProgressThrottleMS,
		RefineStride:         defaultRefineStride,
		ThresholdDebounceMS:  defaultThresholdDebounceMS,
		SuccessDismissMS:     defaultSuccessDismissMS,
		DefaultThreshold:     defaultThreshold,
		AutoIndex:            true,
	}
}

// Load locates and parses the glance config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBind              string `toml:"api_bind"`
		LogDir               string `toml:"log_dir"`
		LogLevel             string `toml:"log_level"`
		ThumbnailConcurrency int    `toml:"thumbnail_concurrency"`
		BatchWindowMS        int    `toml:"batch_window_ms"`
		PrefetchRows         *int   `toml:"prefetch_rows"`
		ProgressThrottleMS   int    `toml:"progress_throttle_ms"`
		RefineStride         int    `toml:"refine_stride"`
		ThresholdDebounceMS  int    `toml:"threshold_debounce_ms"`
		SuccessDismissMS     int    `toml:"success_dismiss_ms"`
		DefaultThreshold     *int   `toml:"default_threshold"`
		AutoIndex            *bool  `toml:"auto_index"`
		RequestTimeoutS      int    `toml:"request_timeout_s"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBind); v != "" {
		cfg.APIBind = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		cfg.LogLevel = v
	}
	cfg.ThumbnailConcurrency = positiveOr(raw.ThumbnailConcurrency, cfg.ThumbnailConcurrency)
	cfg.BatchWindowMS = positiveOr(raw.BatchWindowMS, cfg.BatchWindowMS)
	cfg.ProgressThrottleMS = positiveOr(raw.ProgressThrottleMS, cfg.ProgressThrottleMS)
	cfg.RefineStride = positiveOr(raw.RefineStride, cfg.RefineStride)
	cfg.ThresholdDebounceMS = positiveOr(raw.ThresholdDebounceMS, cfg.ThresholdDebounceMS)
	cfg.SuccessDismissMS = positiveOr(raw.SuccessDismissMS, cfg.SuccessDismissMS)
	if raw.PrefetchRows != nil && *raw.PrefetchRows >= 0 {
		cfg.PrefetchRows = *raw.PrefetchRows
	}
	if raw.DefaultThreshold != nil {
		cfg.DefaultThreshold = min(max(*raw.DefaultThreshold, 0), 100)
	}
	if raw.AutoIndex != nil {
		cfg.AutoIndex = *raw.AutoIndex
	}
	if raw.RequestTimeoutS > 0 {
		cfg.RequestTimeoutS = raw.RequestTimeoutS
	}

	return cfg, nil
}

// LogPath returns the path of glance's own log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/glance.log")
	}
	return filepath.Join(c.LogDir, "glance.log")
}

// BatchWindow returns the thumbnail coalescing window.
func (c Config) BatchWindow() time.Duration {
	return time.Duration(c.BatchWindowMS) * time.Millisecond
}

// ProgressThrottle returns the minimum spacing of applied progress updates.
func (c Config) ProgressThrottle() time.Duration {
	return time.Duration(c.ProgressThrottleMS) * time.Millisecond
}

// ThresholdDebounce returns the quiet period before a threshold edit is queried.
func (c Config) ThresholdDebounce() time.Duration {
	return time.Duration(c.ThresholdDebounceMS) * time.Millisecond
}

// SuccessDismiss returns how long the completion notice stays up.
func (c Config) SuccessDismiss() time.Duration {
	return time.Duration(c.SuccessDismissMS) * time.Millisecond
}

// RequestTimeout returns the HTTP request timeout; zero means none.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutS) * time.Second
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
