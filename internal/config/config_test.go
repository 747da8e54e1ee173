package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, "app:\n  environment: test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cfg.Terminal.Titles) == 0 || cfg.Terminal.Titles[0] != "网上股票交易系统5.0" {
		t.Errorf("unexpected default titles: %v", cfg.Terminal.Titles)
	}
	if cfg.Cloud.HeartbeatInterval != 30*time.Second {
		t.Errorf("unexpected default heartbeat interval: %v", cfg.Cloud.HeartbeatInterval)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Artifact.CutoffHour != 15 {
		t.Errorf("unexpected default cutoff hour: %d", cfg.Artifact.CutoffHour)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: production
cloud:
  heartbeat_interval: 10s
  reconnect_delay: 1s
  reconnect_max_delay: 30s
server:
  port: 9999
artifact:
  cutoff_hour: 16
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.App.Environment != "production" {
		t.Errorf("environment: got %q", cfg.App.Environment)
	}
	if cfg.Cloud.HeartbeatInterval != 10*time.Second {
		t.Errorf("heartbeat interval: got %v", cfg.Cloud.HeartbeatInterval)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if cfg.Artifact.CutoffHour != 16 {
		t.Errorf("cutoff hour: got %d", cfg.Artifact.CutoffHour)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Cloud.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"app.environment", "terminal.titles", "cloud.url", "logging.level"} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation message missing %q: %s", want, msg)
		}
	}
}

func TestValidate_ReconnectOrdering(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{Environment: "test"},
		Terminal: TerminalConfig{Titles: []string{"网上股票交易系统"}},
		Cloud: CloudConfig{
			Enabled:           true,
			URL:               "ws://localhost:9000/ws",
			Source:            "agent",
			HeartbeatInterval: 30 * time.Second,
			ReconnectDelay:    2 * time.Minute,
			ReconnectMaxDelay: time.Minute,
			MaxReconnects:     3,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Encoding:         "console",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "reconnect_delay") {
		t.Fatalf("expected reconnect ordering error, got %v", err)
	}
}
