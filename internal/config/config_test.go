package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "data")
	}
	if cfg.LockTimeout != 20*time.Second {
		t.Errorf("LockTimeout = %v, want 20s", cfg.LockTimeout)
	}
	if cfg.Limits.CreateMax != 30 || cfg.Limits.CreateWindow != time.Minute {
		t.Errorf("create limits = %d/%v, want 30/1m", cfg.Limits.CreateMax, cfg.Limits.CreateWindow)
	}
	if cfg.Limits.ReadMax != 120 || cfg.Limits.ReadWindow != time.Minute {
		t.Errorf("read limits = %d/%v, want 120/1m", cfg.Limits.ReadMax, cfg.Limits.ReadWindow)
	}
}

func TestLoad_OverlaysDefinedKeysOnly(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/var/lib/eventbook"
lock_timeout_ms = 5000

[limits]
create_max = 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DataDir != "/var/lib/eventbook" {
		t.Errorf("DataDir = %q, want overlay value", cfg.DataDir)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("LockTimeout = %v, want 5s", cfg.LockTimeout)
	}
	if cfg.Limits.CreateMax != 5 {
		t.Errorf("CreateMax = %d, want 5", cfg.Limits.CreateMax)
	}
	// Untouched keys keep their defaults
	if cfg.Limits.CreateWindow != time.Minute {
		t.Errorf("CreateWindow = %v, want default 1m", cfg.Limits.CreateWindow)
	}
	if cfg.Limits.ReadMax != 120 {
		t.Errorf("ReadMax = %d, want default 120", cfg.Limits.ReadMax)
	}
}

func TestLoad_FullOverlay(t *testing.T) {
	path := writeConfig(t, `
data_dir = "d"
spec_path = "custom.cue"
lock_timeout_ms = 1000

[limits]
create_max = 1
create_window_ms = 2000
read_max = 3
read_window_ms = 4000

[links]
admin_base = "https://a.test"
public_base = "https://p.test"
display_base = "https://d.test"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.SpecPath != "custom.cue" {
		t.Errorf("SpecPath = %q, want %q", cfg.SpecPath, "custom.cue")
	}
	if cfg.Limits.CreateWindow != 2*time.Second || cfg.Limits.ReadWindow != 4*time.Second {
		t.Errorf("windows = %v/%v, want 2s/4s", cfg.Limits.CreateWindow, cfg.Limits.ReadWindow)
	}
	if cfg.Links.AdminBase != "https://a.test" {
		t.Errorf("AdminBase = %q, want explicit value", cfg.Links.AdminBase)
	}
}

func TestLoad_DerivesLinkBasesFromBaseURL(t *testing.T) {
	path := writeConfig(t, `
[links]
base_url = "https://events.test/"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Links.AdminBase != "https://events.test/admin" {
		t.Errorf("AdminBase = %q, want derived", cfg.Links.AdminBase)
	}
	if cfg.Links.PublicBase != "https://events.test/e" {
		t.Errorf("PublicBase = %q, want derived", cfg.Links.PublicBase)
	}
	if cfg.Links.DisplayBase != "https://events.test/d" {
		t.Errorf("DisplayBase = %q, want derived", cfg.Links.DisplayBase)
	}
}

func TestLoad_ExplicitBaseWinsOverBaseURL(t *testing.T) {
	path := writeConfig(t, `
[links]
base_url = "https://events.test"
admin_base = "https://admin.events.test"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Links.AdminBase != "https://admin.events.test" {
		t.Errorf("AdminBase = %q, want explicit value", cfg.Links.AdminBase)
	}
	if cfg.Links.PublicBase != "https://events.test/e" {
		t.Errorf("PublicBase = %q, want derived", cfg.Links.PublicBase)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing file", ""},
		{"zero lock timeout", "lock_timeout_ms = 0"},
		{"negative lock timeout", "lock_timeout_ms = -5"},
		{"empty data dir", `data_dir = ""`},
		{"negative create max", "[limits]\ncreate_max = -1"},
		{"malformed toml", "data_dir = ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if tt.name == "missing file" {
				path = filepath.Join(t.TempDir(), "absent.toml")
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	l := Links{BaseURL: "https://events.test"}

	once := l.Resolve()
	twice := once.Resolve()
	if once != twice {
		t.Errorf("Resolve() not idempotent: %+v vs %+v", once, twice)
	}
}
