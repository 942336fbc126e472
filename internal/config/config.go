// Package config handles taskdrive configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./taskdrive.yaml, ~/.config/taskdrive/config.yaml,
// /etc/taskdrive/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"taskdrive.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskdrive", "config.yaml"))
	}

	paths = append(paths, "/etc/taskdrive/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns an empty path with a nil error when nothing was found; the caller
// falls back to defaults.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// Config holds all taskdrive configuration.
type Config struct {
	Model      string           `yaml:"model"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Agent      AgentConfig      `yaml:"agent"`
	Shell      ShellConfig      `yaml:"shell"`
	Python     PythonConfig     `yaml:"python"`
	Log        LogConfig        `yaml:"log"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// OllamaConfig defines the chat endpoint connection.
type OllamaConfig struct {
	// BaseURL of the Ollama server (default http://localhost:11434).
	BaseURL string `yaml:"base_url"`
}

// AgentConfig defines loop behavior.
type AgentConfig struct {
	// MaxIterations caps the number of model/tool rounds per task.
	MaxIterations int `yaml:"max_iterations"`
}

// ShellConfig defines the shell tool.
type ShellConfig struct {
	// DefaultTimeoutSec is the per-command timeout in seconds (default 10).
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
}

// PythonConfig defines the run_python tool.
type PythonConfig struct {
	// Interpreter is the executable used to run generated scripts
	// (default python3).
	Interpreter string `yaml:"interpreter"`
}

// LogConfig defines the rotating agent log.
type LogConfig struct {
	// Path of the append-only log file (default agent_context.log).
	Path string `yaml:"path"`
	// Level is the minimum level written (trace, debug, info, warn, error).
	Level string `yaml:"level"`
	// MaxSizeMB is the rotation threshold per file (default 10).
	MaxSizeMB int `yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default 5).
	MaxBackups int `yaml:"max_backups"`
}

// TranscriptConfig defines the optional SQLite transcript store.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in configuration used when no config file
// exists. The model default matches what a stock Ollama install is likely
// to have pulled.
func Default() *Config {
	return &Config{
		Model:  "llama3.2:3b",
		Ollama: OllamaConfig{BaseURL: "http://localhost:11434"},
		Agent:  AgentConfig{MaxIterations: 10},
		Shell:  ShellConfig{DefaultTimeoutSec: 10},
		Python: PythonConfig{Interpreter: "python3"},
		Log: LogConfig{
			Path:       "agent_context.log",
			Level:      "debug",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Path:    "taskdrive.db",
		},
	}
}

// Load reads and parses a config file, layering it over Default.
// An empty path returns Default unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values with the built-in defaults so a partial
// config file never produces a broken runtime.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = d.Ollama.BaseURL
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = d.Agent.MaxIterations
	}
	if c.Shell.DefaultTimeoutSec <= 0 {
		c.Shell.DefaultTimeoutSec = d.Shell.DefaultTimeoutSec
	}
	if c.Python.Interpreter == "" {
		c.Python.Interpreter = d.Python.Interpreter
	}
	if c.Log.Path == "" {
		c.Log.Path = d.Log.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Transcript.Path == "" {
		c.Transcript.Path = d.Transcript.Path
	}
}
