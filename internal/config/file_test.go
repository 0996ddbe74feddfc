package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSourcesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return path
}

func TestLoadFile_ParsesSourcesAndLimits(t *testing.T) {
	t.Parallel()

	path := writeSourcesFile(t, `
sources:
  - name: webintel
    enabled: true
    queries:
      - "protest reports"
      - "detained journalists"
  - name: relay
    enabled: false
    channels:
      - "@citizen_reports"
limits:
  incidents:
    max_requests: 5
    window_seconds: 3600
    fail_mode: closed
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	src, ok := cfg.Source("webintel")
	if !ok || !src.Enabled {
		t.Fatalf("webintel source = %+v, %v; want enabled entry", src, ok)
	}
	if len(src.Queries) != 2 {
		t.Fatalf("webintel queries = %v, want 2 entries", src.Queries)
	}
	if cfg.SourceEnabled("relay") {
		t.Fatal("relay reported enabled, want disabled")
	}
	if cfg.SourceEnabled("scout") {
		t.Fatal("scout reported enabled without an entry in an explicit file")
	}

	limit, ok := cfg.Limits["incidents"]
	if !ok {
		t.Fatal("missing incidents limit override")
	}
	if limit.MaxRequests != 5 || limit.Window() != time.Hour {
		t.Fatalf("incidents limit = %+v, want 5 per hour", limit)
	}
}

func TestLoadFile_RejectsUnknownSource(t *testing.T) {
	t.Parallel()

	path := writeSourcesFile(t, `
sources:
  - name: carrier-pigeon
    enabled: true
`)
	if _, err := LoadFile(path); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("err = %v, want ErrUnknownSource", err)
	}
}

func TestLoadFile_RejectsAllDisabled(t *testing.T) {
	t.Parallel()

	path := writeSourcesFile(t, `
sources:
  - name: webintel
    enabled: false
`)
	if _, err := LoadFile(path); !errors.Is(err, ErrNoEnabledSources) {
		t.Fatalf("err = %v, want ErrNoEnabledSources", err)
	}
}

func TestLoadFile_RejectsBadFailMode(t *testing.T) {
	t.Parallel()

	path := writeSourcesFile(t, `
limits:
  search:
    max_requests: 60
    window_seconds: 60
    fail_mode: maybe
`)
	if _, err := LoadFile(path); !errors.Is(err, ErrInvalidFailMode) {
		t.Fatalf("err = %v, want ErrInvalidFailMode", err)
	}
}

func TestFileConfig_NilMeansEverythingEnabled(t *testing.T) {
	t.Parallel()

	var cfg *FileConfig
	if !cfg.SourceEnabled("webintel") {
		t.Fatal("nil file config should enable every configured adapter")
	}
}

func TestConfigValidate_Bounds(t *testing.T) {
	t.Parallel()

	valid := Config{
		DatabaseURL:            "postgres://localhost/groundwire",
		DBMinConns:             1,
		DBMaxConns:             8,
		RefreshIntervalMinutes: 30,
		SourceTimeoutSeconds:   15,
		RecentWindowHours:      24,
		DedupThreshold:         0.8,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if valid.RefreshInterval() != 30*time.Minute {
		t.Fatalf("refresh interval = %v, want 30m", valid.RefreshInterval())
	}
	if valid.SourceTimeout() != 15*time.Second {
		t.Fatalf("source timeout = %v, want 15s", valid.SourceTimeout())
	}

	broken := valid
	broken.DedupThreshold = 1.5
	if err := broken.Validate(); err == nil {
		t.Fatal("expected an error for a threshold above 1")
	}

	broken = valid
	broken.DatabaseURL = " "
	if err := broken.Validate(); err == nil {
		t.Fatal("expected an error for a blank database url")
	}

	broken = valid
	broken.DBMinConns = 9
	if err := broken.Validate(); err == nil {
		t.Fatal("expected an error when min conns exceed max conns")
	}

	broken = valid
	broken.NotifyWebhookURL = "not a url"
	if err := broken.Validate(); err == nil {
		t.Fatal("expected an error for a malformed webhook url")
	}
}
