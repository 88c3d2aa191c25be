// Package config holds the explicit runtime configuration. No ambient
// globals: a Config is built from defaults, optionally overlaid with a
// TOML file, and threaded through constructors.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/roach88/eventbook/internal/guard"
)

// Config is the full runtime configuration.
type Config struct {
	// DataDir is the root directory for the control store, workbooks
	// and trash.
	DataDir string

	// SpecPath optionally points at an external CUE store spec that
	// overrides the embedded one.
	SpecPath string

	// LockTimeout bounds the wait for the mutation lock.
	LockTimeout time.Duration

	Limits Limits
	Links  Links
}

// Limits configures the fixed-window rate limiter per request class.
// A zero Max leaves that class unenforced (the guard fails open).
type Limits struct {
	CreateMax    int
	CreateWindow time.Duration
	ReadMax      int
	ReadWindow   time.Duration
}

// Links configures URL derivation. BaseURL fills any per-class base
// left empty; explicit bases win.
type Links struct {
	BaseURL     string
	AdminBase   string
	PublicBase  string
	DisplayBase string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:     "data",
		LockTimeout: guard.DefaultLockTimeout,
		Limits: Limits{
			CreateMax:    30,
			CreateWindow: time.Minute,
			ReadMax:      120,
			ReadWindow:   time.Minute,
		},
	}
}

// WorkbooksDir is where the resource factory stores per-event files.
func (c Config) WorkbooksDir() string {
	return filepath.Join(c.DataDir, "workbooks")
}

// Resolve returns a copy with per-class bases derived from BaseURL
// where they were left empty. Idempotent.
func (l Links) Resolve() Links {
	if l.BaseURL == "" {
		return l
	}
	base := strings.TrimSuffix(l.BaseURL, "/")
	if l.AdminBase == "" {
		l.AdminBase = base + "/admin"
	}
	if l.PublicBase == "" {
		l.PublicBase = base + "/e"
	}
	if l.DisplayBase == "" {
		l.DisplayBase = base + "/d"
	}
	return l
}

// config.toml key mapping.
type fileConfig struct {
	DataDir       string `toml:"data_dir"`
	SpecPath      string `toml:"spec_path"`
	LockTimeoutMS int64  `toml:"lock_timeout_ms"`

	Limits struct {
		CreateMax      int   `toml:"create_max"`
		CreateWindowMS int64 `toml:"create_window_ms"`
		ReadMax        int   `toml:"read_max"`
		ReadWindowMS   int64 `toml:"read_window_ms"`
	} `toml:"limits"`

	Links struct {
		BaseURL     string `toml:"base_url"`
		AdminBase   string `toml:"admin_base"`
		PublicBase  string `toml:"public_base"`
		DisplayBase string `toml:"display_base"`
	} `toml:"links"`
}

// Load overlays the TOML file at path onto the defaults. Keys absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("data_dir") {
		cfg.DataDir = strings.TrimSpace(raw.DataDir)
	}
	if meta.IsDefined("spec_path") {
		cfg.SpecPath = strings.TrimSpace(raw.SpecPath)
	}
	if meta.IsDefined("lock_timeout_ms") {
		if raw.LockTimeoutMS <= 0 {
			return Config{}, fmt.Errorf("load config: lock_timeout_ms must be positive, got %d", raw.LockTimeoutMS)
		}
		cfg.LockTimeout = time.Duration(raw.LockTimeoutMS) * time.Millisecond
	}

	if meta.IsDefined("limits", "create_max") {
		cfg.Limits.CreateMax = raw.Limits.CreateMax
	}
	if meta.IsDefined("limits", "create_window_ms") {
		cfg.Limits.CreateWindow = time.Duration(raw.Limits.CreateWindowMS) * time.Millisecond
	}
	if meta.IsDefined("limits", "read_max") {
		cfg.Limits.ReadMax = raw.Limits.ReadMax
	}
	if meta.IsDefined("limits", "read_window_ms") {
		cfg.Limits.ReadWindow = time.Duration(raw.Limits.ReadWindowMS) * time.Millisecond
	}

	if meta.IsDefined("links", "base_url") {
		cfg.Links.BaseURL = strings.TrimSpace(raw.Links.BaseURL)
	}
	if meta.IsDefined("links", "admin_base") {
		cfg.Links.AdminBase = strings.TrimSpace(raw.Links.AdminBase)
	}
	if meta.IsDefined("links", "public_base") {
		cfg.Links.PublicBase = strings.TrimSpace(raw.Links.PublicBase)
	}
	if meta.IsDefined("links", "display_base") {
		cfg.Links.DisplayBase = strings.TrimSpace(raw.Links.DisplayBase)
	}

	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("load config: data_dir must not be empty")
	}
	if cfg.Limits.CreateMax < 0 || cfg.Limits.ReadMax < 0 {
		return Config{}, fmt.Errorf("load config: limit maxima must be non-negative")
	}

	cfg.Links = cfg.Links.Resolve()
	return cfg, nil
}
