package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCoreConfigDefaults(t *testing.T) {
	t.Setenv(DataDirEnv, t.TempDir())
	cfg, err := LoadCoreConfig()
	if err != nil {
		t.Fatalf("LoadCoreConfig: %v", err)
	}
	if cfg.DaemonAddress() != "127.0.0.1:7780" {
		t.Fatalf("unexpected daemon address: %q", cfg.DaemonAddress())
	}
	if cfg.DaemonBaseURL() != "http://127.0.0.1:7780" {
		t.Fatalf("unexpected daemon base url: %q", cfg.DaemonBaseURL())
	}
	if cfg.HistoryCapacity() != 100 || cfg.HistoryDefaultLimit() != 20 {
		t.Fatalf("unexpected history defaults: %d %d", cfg.HistoryCapacity(), cfg.HistoryDefaultLimit())
	}
	if !cfg.HistoryPersistEnabled() || cfg.HistoryBackend() != "bbolt" {
		t.Fatalf("expected bbolt persistence by default")
	}
	if cfg.SessionShell() != "/bin/bash" || cfg.SessionTimeout() != 120*time.Second {
		t.Fatalf("unexpected session defaults: %q %s", cfg.SessionShell(), cfg.SessionTimeout())
	}
	if cfg.ExecDefaultTimeout() != 0 {
		t.Fatalf("expected no exec timeout by default, got %s", cfg.ExecDefaultTimeout())
	}
}

func TestLoadCoreConfigFromTOML(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(DataDirEnv, dataDir)

	content := []byte(`[daemon]
address = "http://127.0.0.1:9999/"

[logging]
level = "debug"

[history]
capacity = 10
default_limit = 50
persist = false
backend = "FILE"

[session]
shell = "/bin/sh"
args = ["-i", " "]
timeout_seconds = 1.5
sentinel = "__MARK__"

[exec]
default_timeout_seconds = 30
`)
	if err := os.WriteFile(filepath.Join(dataDir, "config.toml"), content, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadCoreConfig()
	if err != nil {
		t.Fatalf("LoadCoreConfig: %v", err)
	}
	if cfg.DaemonAddress() != "127.0.0.1:9999" {
		t.Fatalf("unexpected daemon address: %q", cfg.DaemonAddress())
	}
	if cfg.LogLevel() != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel())
	}
	if cfg.HistoryCapacity() != 10 {
		t.Fatalf("unexpected capacity: %d", cfg.HistoryCapacity())
	}
	if cfg.HistoryDefaultLimit() != 10 {
		t.Fatalf("default limit should be clamped to capacity, got %d", cfg.HistoryDefaultLimit())
	}
	if cfg.HistoryPersistEnabled() {
		t.Fatalf("expected persistence disabled")
	}
	if cfg.HistoryBackend() != "file" {
		t.Fatalf("unexpected backend: %q", cfg.HistoryBackend())
	}
	if cfg.SessionShell() != "/bin/sh" || len(cfg.SessionArgs()) != 1 {
		t.Fatalf("unexpected session shell: %q %#v", cfg.SessionShell(), cfg.SessionArgs())
	}
	if cfg.SessionTimeout() != 1500*time.Millisecond {
		t.Fatalf("unexpected session timeout: %s", cfg.SessionTimeout())
	}
	if cfg.SessionSentinel() != "__MARK__" {
		t.Fatalf("unexpected sentinel: %q", cfg.SessionSentinel())
	}
	if cfg.ExecDefaultTimeout() != 30*time.Second {
		t.Fatalf("unexpected exec timeout: %s", cfg.ExecDefaultTimeout())
	}
}

func TestLoadCoreConfigEmptyFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(DataDirEnv, dataDir)
	if err := os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte("  \n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadCoreConfig()
	if err != nil {
		t.Fatalf("LoadCoreConfig: %v", err)
	}
	if cfg.HistoryCapacity() != 100 {
		t.Fatalf("expected defaults, got capacity %d", cfg.HistoryCapacity())
	}
}

func TestLoadCoreConfigRejectsMalformedTOML(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(DataDirEnv, dataDir)
	if err := os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte("[history\ncapacity = "), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadCoreConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestAccessorsNormalizeInvalidValues(t *testing.T) {
	cfg := CoreConfig{
		History: CoreHistoryConfig{Capacity: -1, Backend: "sqlite"},
		Session: CoreSessionConfig{Shell: "  ", TimeoutSeconds: -3},
		Exec:    CoreExecConfig{DefaultTimeoutSeconds: -1},
	}
	if cfg.HistoryCapacity() != 100 || cfg.HistoryBackend() != "bbolt" {
		t.Fatalf("unexpected history normalization")
	}
	if cfg.SessionShell() != "/bin/bash" || cfg.SessionTimeout() != 120*time.Second {
		t.Fatalf("unexpected session normalization")
	}
	if cfg.ExecDefaultTimeout() != 0 || cfg.LogLevel() != "info" {
		t.Fatalf("unexpected exec/logging normalization")
	}
	if !cfg.HistoryPersistEnabled() {
		t.Fatalf("unset persist should default to enabled")
	}
}
