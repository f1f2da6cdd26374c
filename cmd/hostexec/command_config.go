package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"hostexec/internal/config"
)

type ConfigCommand struct {
	stdout io.Writer
	stderr io.Writer
}

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"
	configFormatYAML = "yaml"
)

type configOutput struct {
	CoreConfigPath string                 `json:"core_config_path" toml:"core_config_path" yaml:"core_config_path"`
	DataDir        string                 `json:"data_dir" toml:"data_dir" yaml:"data_dir"`
	Daemon         effectiveDaemonConfig  `json:"daemon" toml:"daemon" yaml:"daemon"`
	Logging        effectiveLoggingConfig `json:"logging" toml:"logging" yaml:"logging"`
	History        effectiveHistoryConfig `json:"history" toml:"history" yaml:"history"`
	Session        effectiveSessionConfig `json:"session" toml:"session" yaml:"session"`
	Exec           effectiveExecConfig    `json:"exec" toml:"exec" yaml:"exec"`
}

type effectiveDaemonConfig struct {
	Address string `json:"address" toml:"address" yaml:"address"`
	BaseURL string `json:"base_url" toml:"base_url" yaml:"base_url"`
}

type effectiveLoggingConfig struct {
	Level string `json:"level" toml:"level" yaml:"level"`
}

type effectiveHistoryConfig struct {
	Capacity     int    `json:"capacity" toml:"capacity" yaml:"capacity"`
	DefaultLimit int    `json:"default_limit" toml:"default_limit" yaml:"default_limit"`
	Persist      bool   `json:"persist" toml:"persist" yaml:"persist"`
	Backend      string `json:"backend" toml:"backend" yaml:"backend"`
}

type effectiveSessionConfig struct {
	Shell          string   `json:"shell" toml:"shell" yaml:"shell"`
	Args           []string `json:"args,omitempty" toml:"args,omitempty" yaml:"args,omitempty"`
	Cwd            string   `json:"cwd,omitempty" toml:"cwd,omitempty" yaml:"cwd,omitempty"`
	TimeoutSeconds float64  `json:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds"`
	// The sentinel is generated per daemon when unset, so only an explicit
	// value is shown.
	Sentinel string `json:"sentinel,omitempty" toml:"sentinel,omitempty" yaml:"sentinel,omitempty"`
}

type effectiveExecConfig struct {
	DefaultTimeoutSeconds float64 `json:"default_timeout_seconds" toml:"default_timeout_seconds" yaml:"default_timeout_seconds"`
}

func NewConfigCommand(stdout, stderr io.Writer) *ConfigCommand {
	return &ConfigCommand{
		stdout: stdout,
		stderr: stderr,
	}
}

func (c *ConfigCommand) Run(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	defaults := fs.Bool("default", false, "print default config values")
	format := fs.String("format", configFormatJSON, "output format: json|toml|yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resolvedFormat, err := resolveConfigFormat(*format)
	if err != nil {
		return err
	}
	payload, err := buildConfigOutput(*defaults)
	if err != nil {
		return err
	}
	return writeConfigOutput(c.stdout, resolvedFormat, payload)
}

func buildConfigOutput(defaults bool) (configOutput, error) {
	corePath, err := config.CoreConfigPath()
	if err != nil {
		return configOutput{}, err
	}
	dataDir, err := config.DataDir()
	if err != nil {
		return configOutput{}, err
	}
	coreCfg := config.DefaultCoreConfig()
	if !defaults {
		coreCfg, err = config.LoadCoreConfig()
		if err != nil {
			return configOutput{}, err
		}
	}
	return configOutput{
		CoreConfigPath: corePath,
		DataDir:        dataDir,
		Daemon: effectiveDaemonConfig{
			Address: coreCfg.DaemonAddress(),
			BaseURL: coreCfg.DaemonBaseURL(),
		},
		Logging: effectiveLoggingConfig{
			Level: coreCfg.LogLevel(),
		},
		History: effectiveHistoryConfig{
			Capacity:     coreCfg.HistoryCapacity(),
			DefaultLimit: coreCfg.HistoryDefaultLimit(),
			Persist:      coreCfg.HistoryPersistEnabled(),
			Backend:      coreCfg.HistoryBackend(),
		},
		Session: effectiveSessionConfig{
			Shell:          coreCfg.SessionShell(),
			Args:           coreCfg.SessionArgs(),
			Cwd:            coreCfg.SessionCwd(),
			TimeoutSeconds: coreCfg.SessionTimeout().Seconds(),
			Sentinel:       coreCfg.SessionSentinel(),
		},
		Exec: effectiveExecConfig{
			DefaultTimeoutSeconds: coreCfg.ExecDefaultTimeout().Seconds(),
		},
	}, nil
}

func writeConfigOutput(out io.Writer, format string, payload any) error {
	switch format {
	case configFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case configFormatTOML:
		data, err := toml.Marshal(payload)
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = out.Write(data)
		return err
	case configFormatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(payload); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return errors.New("unsupported format")
	}
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", configFormatJSON:
		return configFormatJSON, nil
	case configFormatTOML:
		return configFormatTOML, nil
	case configFormatYAML, "yml":
		return configFormatYAML, nil
	default:
		return "", errors.New("invalid format: must be json, toml, or yaml")
	}
}
