package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "browseback.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIPort != 8765 || cfg.Server.BindAddress != "127.0.0.1" {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Storage.Type != "bolt" || cfg.Storage.Redis.KeyPrefix != "browseback" {
		t.Errorf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Tracking.TickInterval != "1m" || cfg.Tracking.ResetCheckInterval != "1h" {
		t.Errorf("unexpected tracking defaults: %+v", cfg.Tracking)
	}
	if cfg.History.MaxResults != 10000 || cfg.History.Lookback != "168h" {
		t.Errorf("unexpected history defaults: %+v", cfg.History)
	}
	if cfg.Estimator.MaxSessionGap != "30m" {
		t.Errorf("unexpected estimator defaults: %+v", cfg.Estimator)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  api_port: 9000
storage:
  type: memory
tracking:
  tick_interval: 30s
estimator:
  max_session_gap: 15m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.APIPort != 9000 {
		t.Errorf("APIPort = %d, want 9000", cfg.Server.APIPort)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Tracking.TickInterval != "30s" {
		t.Errorf("TickInterval = %q", cfg.Tracking.TickInterval)
	}
	if cfg.Estimator.MaxSessionGap != "15m" {
		t.Errorf("MaxSessionGap = %q", cfg.Estimator.MaxSessionGap)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BROWSEBACK_SERVER_API_PORT", "9100")
	t.Setenv("BROWSEBACK_STORAGE_TYPE", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.APIPort != 9100 {
		t.Errorf("APIPort = %d, want 9100", cfg.Server.APIPort)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad port", "server:\n  api_port: 70000\n", "invalid API port"},
		{"bad storage", "storage:\n  type: etcd\n", "unsupported storage type"},
		{"bad source", "history:\n  source: firefox\n", "unsupported history source"},
		{"bad duration", "tracking:\n  tick_interval: soon\n", "tracking.tick_interval"},
		{"negative duration", "estimator:\n  trailing_visit: -1m\n", "must be positive"},
		{"tick too fast", "tracking:\n  tick_interval: 100ms\n", "at least 1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestKnownKeys(t *testing.T) {
	keys := KnownKeys()
	for _, k := range []string{"server.api_port", "storage.redis.key_prefix", "notify.feed_size", "history.path"} {
		if !keys[k] {
			t.Errorf("missing known key %s", k)
		}
	}

	if Defaults().Notify.FeedSize != 50 {
		t.Errorf("Defaults().Notify.FeedSize = %d", Defaults().Notify.FeedSize)
	}
}
