package config

import (
	"errors"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultDaemonAddress         = "127.0.0.1:7780"
	defaultLogLevel              = "info"
	defaultHistoryCapacity       = 100
	defaultHistoryLimit          = 20
	defaultHistoryBackend        = "bbolt"
	defaultSessionShell          = "/bin/bash"
	defaultSessionTimeoutSeconds = 120
)

type CoreConfig struct {
	Daemon  CoreDaemonConfig  `toml:"daemon"`
	Logging CoreLoggingConfig `toml:"logging"`
	History CoreHistoryConfig `toml:"history"`
	Session CoreSessionConfig `toml:"session"`
	Exec    CoreExecConfig    `toml:"exec"`
}

type CoreDaemonConfig struct {
	Address string `toml:"address"`
}

type CoreLoggingConfig struct {
	Level string `toml:"level"`
}

type CoreHistoryConfig struct {
	Capacity     int    `toml:"capacity"`
	DefaultLimit int    `toml:"default_limit"`
	Persist      *bool  `toml:"persist"`
	Backend      string `toml:"backend"`
}

type CoreSessionConfig struct {
	Shell          string   `toml:"shell"`
	Args           []string `toml:"args"`
	Cwd            string   `toml:"cwd"`
	TimeoutSeconds float64  `toml:"timeout_seconds"`
	Sentinel       string   `toml:"sentinel"`
}

type CoreExecConfig struct {
	DefaultTimeoutSeconds float64 `toml:"default_timeout_seconds"`
}

func DefaultCoreConfig() CoreConfig {
	persist := true
	return CoreConfig{
		Daemon: CoreDaemonConfig{
			Address: defaultDaemonAddress,
		},
		Logging: CoreLoggingConfig{
			Level: defaultLogLevel,
		},
		History: CoreHistoryConfig{
			Capacity:     defaultHistoryCapacity,
			DefaultLimit: defaultHistoryLimit,
			Persist:      &persist,
			Backend:      defaultHistoryBackend,
		},
		Session: CoreSessionConfig{
			Shell:          defaultSessionShell,
			TimeoutSeconds: defaultSessionTimeoutSeconds,
		},
	}
}

func LoadCoreConfig() (CoreConfig, error) {
	path, err := CoreConfigPath()
	if err != nil {
		return CoreConfig{}, err
	}
	return loadCoreConfigFromPath(path)
}

func (c CoreConfig) DaemonAddress() string {
	addr := strings.TrimSpace(c.Daemon.Address)
	if addr == "" {
		return defaultDaemonAddress
	}
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return defaultDaemonAddress
	}
	return addr
}

func (c CoreConfig) DaemonBaseURL() string {
	return "http://" + c.DaemonAddress()
}

func (c CoreConfig) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return defaultLogLevel
	}
	return level
}

func (c CoreConfig) HistoryCapacity() int {
	if c.History.Capacity <= 0 {
		return defaultHistoryCapacity
	}
	return c.History.Capacity
}

func (c CoreConfig) HistoryDefaultLimit() int {
	limit := c.History.DefaultLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > c.HistoryCapacity() {
		limit = c.HistoryCapacity()
	}
	return limit
}

func (c CoreConfig) HistoryPersistEnabled() bool {
	if c.History.Persist == nil {
		return true
	}
	return *c.History.Persist
}

func (c CoreConfig) HistoryBackend() string {
	switch backend := strings.ToLower(strings.TrimSpace(c.History.Backend)); backend {
	case "bbolt", "file":
		return backend
	default:
		return defaultHistoryBackend
	}
}

func (c CoreConfig) SessionShell() string {
	shell := strings.TrimSpace(c.Session.Shell)
	if shell == "" {
		return defaultSessionShell
	}
	return shell
}

func (c CoreConfig) SessionArgs() []string {
	return normalizedList(c.Session.Args)
}

func (c CoreConfig) SessionCwd() string {
	return strings.TrimSpace(c.Session.Cwd)
}

func (c CoreConfig) SessionTimeout() time.Duration {
	seconds := c.Session.TimeoutSeconds
	if seconds <= 0 {
		seconds = defaultSessionTimeoutSeconds
	}
	return secondsToDuration(seconds)
}

func (c CoreConfig) SessionSentinel() string {
	return strings.TrimSpace(c.Session.Sentinel)
}

// ExecDefaultTimeout applies to one-shot runs that do not set their own
// timeout. Zero means no timeout.
func (c CoreConfig) ExecDefaultTimeout() time.Duration {
	if c.Exec.DefaultTimeoutSeconds <= 0 {
		return 0
	}
	return secondsToDuration(c.Exec.DefaultTimeoutSeconds)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func loadCoreConfigFromPath(path string) (CoreConfig, error) {
	cfg := DefaultCoreConfig()
	if err := readTOML(path, &cfg); err != nil {
		return CoreConfig{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func normalizedList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
