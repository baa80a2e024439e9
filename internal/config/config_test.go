package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.AggregateInterval != 2*time.Second || cfg.Sync.FocusedInterval != 3*time.Second {
		t.Errorf("intervals = %v/%v", cfg.Sync.AggregateInterval, cfg.Sync.FocusedInterval)
	}
	if cfg.Sync.Tolerance != 10*time.Second {
		t.Errorf("tolerance = %v", cfg.Sync.Tolerance)
	}
	if cfg.Storage.MaxUploadSize.Int64() != 10<<20 {
		t.Errorf("max upload = %d", cfg.Storage.MaxUploadSize)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatsync.yaml")
	body := `
server:
  port: "9090"
database:
  driver: memory
storage:
  max_upload_size: 25MB
sync:
  aggregate_interval: 5s
  pending_timeout: 0s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYNC_FOCUSED_INTERVAL", "750ms")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env must override file, port = %s", cfg.Server.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %s", cfg.Database.Driver)
	}
	if cfg.Storage.MaxUploadSize.Int64() != 25_000_000 {
		t.Errorf("max upload = %d", cfg.Storage.MaxUploadSize)
	}
	if cfg.Sync.AggregateInterval != 5*time.Second {
		t.Errorf("aggregate = %v", cfg.Sync.AggregateInterval)
	}
	if cfg.Sync.FocusedInterval != 750*time.Millisecond {
		t.Errorf("focused = %v", cfg.Sync.FocusedInterval)
	}
	if cfg.Sync.PendingTimeout != 0 {
		t.Errorf("pending timeout = %v", cfg.Sync.PendingTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Sync.AggregateInterval = 0
	cfg.Sync.Tolerance = -time.Second
	cfg.Database.Driver = "sqlite"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"aggregate_interval", "tolerance", "sqlite"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"10MB", 10_000_000, true},
		{"1MiB", 1 << 20, true},
		{"2048", 2048, true},
		{"", 0, true},
		{"lots", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err == nil) != tt.ok || got.Int64() != tt.want {
			t.Errorf("ParseSize(%q) = %d, %v", tt.in, got, err)
		}
	}
}
