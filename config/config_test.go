package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("driver = %q, want sqlite3", cfg.Database.Driver)
	}
	if cfg.Progress.CompletionThreshold != 95 {
		t.Errorf("threshold = %d, want 95", cfg.Progress.CompletionThreshold)
	}
	if cfg.Progress.SyncWorkers != 5 {
		t.Errorf("sync workers = %d, want 5", cfg.Progress.SyncWorkers)
	}
	if cfg.Badges.RefreshInterval != 10*time.Minute {
		t.Errorf("refresh interval = %v, want 10m", cfg.Badges.RefreshInterval)
	}
	if cfg.Redis.Enabled {
		t.Error("redis enabled by default")
	}
}

func TestLoad_FileAndLocalOverride(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("config.yaml", "server:\n  port: 9000\ndatabase:\n  driver: memory\nbadges:\n  refresh_interval: 30s\n")
	write("config.local.yaml", "server:\n  port: 9100\n")

	cfg, err := load(viper.New(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want local override 9100", cfg.Server.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Badges.RefreshInterval != 30*time.Second {
		t.Errorf("refresh interval = %v, want 30s", cfg.Badges.RefreshInterval)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("ASCENDED_PROGRESS_SYNC_WORKERS", "2")
	t.Setenv("ASCENDED_REDIS_ENABLED", "true")

	cfg, err := load(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Progress.SyncWorkers != 2 {
		t.Errorf("sync workers = %d, want 2", cfg.Progress.SyncWorkers)
	}
	if !cfg.Redis.Enabled {
		t.Error("redis not enabled from environment")
	}
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	t.Setenv("ASCENDED_PROGRESS_COMPLETION_THRESHOLD", "101")
	if _, err := load(viper.New(), t.TempDir()); err == nil {
		t.Error("expected error for threshold above 100")
	}
}
