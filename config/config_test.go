package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ThreadLimit <= 0 {
		t.Fatalf("expected a positive default thread limit, got %d", cfg.ThreadLimit)
	}
	if cfg.Features == nil {
		t.Fatalf("expected Features to be initialised")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThreadLimit != Default().ThreadLimit {
		t.Fatalf("expected defaults to be preserved on missing file")
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orcbuild.ini")
	body := `
[core]
thread_limit = 4
discovery_limit = 8
keep_going = true
parse_only = false

[features]
job-limit = 4
load-limit = 2.0
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThreadLimit != 4 {
		t.Errorf("ThreadLimit = %d, want 4", cfg.ThreadLimit)
	}
	if cfg.DiscoveryLimit != 8 {
		t.Errorf("DiscoveryLimit = %d, want 8", cfg.DiscoveryLimit)
	}
	if !cfg.KeepGoing {
		t.Errorf("KeepGoing = false, want true")
	}
	if cfg.Features["job-limit"] != "4" {
		t.Errorf("Features[job-limit] = %q, want 4", cfg.Features["job-limit"])
	}
	if cfg.Features["load-limit"] != "2.0" {
		t.Errorf("Features[load-limit] = %q, want 2.0", cfg.Features["load-limit"])
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	cfg.Pwd = filepath.Join(t.TempDir(), "missing")
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for nonexistent pwd")
	}

	cfg = Default()
	cfg.ThreadLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative thread limit")
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orcbuild.ini")

	cfg := Default()
	cfg.Features["job-limit"] = "8"
	if err := WriteDefault(path, cfg); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ThreadLimit != cfg.ThreadLimit {
		t.Errorf("ThreadLimit = %d, want %d", loaded.ThreadLimit, cfg.ThreadLimit)
	}
	if loaded.Features["job-limit"] != "8" {
		t.Errorf("Features[job-limit] = %q, want 8", loaded.Features["job-limit"])
	}
}
