package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestPaths(t *testing.T) {
	t.Setenv(DataDirEnv, "")
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))

	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if !strings.HasSuffix(dataDir, ".hostexec") {
		t.Fatalf("unexpected data dir: %s", dataDir)
	}

	checks := map[string]func() (string, error){
		"token":        TokenPath,
		"config.toml":  CoreConfigPath,
		"history.db":   HistoryDBPath,
		"history.json": HistoryFilePath,
		"daemon.lock":  LockPath,
		"daemon.log":   DaemonLogPath,
	}
	for name, fn := range checks {
		path, err := fn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.HasSuffix(path, filepath.Join(".hostexec", name)) {
			t.Fatalf("unexpected %s path: %s", name, path)
		}
	}
}

func TestDataDirEnvOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "custom")
	t.Setenv(DataDirEnv, dir+"/")

	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if dataDir != dir {
		t.Fatalf("expected %s, got %s", dir, dataDir)
	}
	tokenPath, err := TokenPath()
	if err != nil {
		t.Fatalf("TokenPath: %v", err)
	}
	if tokenPath != filepath.Join(dir, "token") {
		t.Fatalf("unexpected token path: %s", tokenPath)
	}
}
