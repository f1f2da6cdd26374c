package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName = ".hostexec"

	// DataDirEnv overrides the data directory. Tests and side-by-side daemons
	// use it.
	DataDirEnv = "HOSTEXEC_DATA_DIR"
)

// DataDir returns the base data directory for hostexec.
func DataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(DataDirEnv)); dir != "" {
		return filepath.Clean(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// TokenPath returns the path to the token file.
func TokenPath() (string, error) {
	return dataPath("token")
}

// CoreConfigPath returns the path to the core TOML config file.
func CoreConfigPath() (string, error) {
	return dataPath("config.toml")
}

// HistoryDBPath returns the bbolt database holding command history.
func HistoryDBPath() (string, error) {
	return dataPath("history.db")
}

// HistoryFilePath returns the JSON history file used by the file backend.
func HistoryFilePath() (string, error) {
	return dataPath("history.json")
}

func LockPath() (string, error) {
	return dataPath("daemon.lock")
}

func DaemonLogPath() (string, error) {
	return dataPath("daemon.log")
}

func dataPath(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}
