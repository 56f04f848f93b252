// Package config loads llmap settings from JSONC files and command-line
// overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/dkrasilov/vk-test/internal/logging"
	"github.com/dkrasilov/vk-test/pkg/longmap"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config")

	errFieldEmpty = errors.New("cannot be empty")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".llmap.json"

const (
	appName         = "llmap"
	historyFileName = ".llmap_history"
)

// Config holds all configuration options.
//
//nolint:tagliatelle // snake_case for config file
type Config struct {
	// RegionSize is the size in bytes of newly created map files.
	RegionSize int64 `json:"region_size,omitempty"`

	// LockTimeout bounds the wait for a region lock, as a Go duration.
	// "0s" waits until interrupted.
	LockTimeout string `json:"lock_timeout,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	// HistoryFile is where the shell keeps its history. Empty means
	// ~/.llmap_history.
	HistoryFile string `json:"history_file,omitempty"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		RegionSize:  1 << 20,
		LockTimeout: "10s",
		LogLevel:    "warn",
		LogFormat:   "text",
	}
}

// LockTimeoutDuration returns LockTimeout parsed. Load guarantees it parses.
func (c Config) LockTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.LockTimeout)

	return d
}

// HistoryPath returns the shell history file, or "" if there is no home
// directory to put it in.
func (c Config) HistoryPath(env map[string]string) string {
	if c.HistoryFile != "" {
		return c.HistoryFile
	}

	home := env["HOME"]
	if home == "" {
		var err error

		home, err = os.UserHomeDir()
		if err != nil {
			return ""
		}
	}

	return filepath.Join(home, historyFileName)
}

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/llmap/config.json if set, otherwise ~/.config/llmap/config.json.
// Returns empty string if home directory cannot be determined.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, appName, "config.json")
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", appName, "config.json")
	}

	return ""
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/llmap/config.json or $XDG_CONFIG_HOME/llmap/config.json)
// 3. Project config file in workDir (.llmap.json, if exists)
// 4. Explicit config file via configPath (if non-empty), replacing 3
// 5. CLI overrides (non-zero fields).
func Load(workDir, configPath string, overrides Config, env map[string]string) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	globalCfg, loadedGlobal, err := loadGlobal(env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = loadedGlobal
	cfg = merge(cfg, globalCfg)

	projectCfg, loadedProject, err := loadProject(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = loadedProject
	cfg = merge(cfg, projectCfg)

	cfg = merge(cfg, overrides)

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return cfg, sources, nil
}

func loadGlobal(env map[string]string) (Config, string, error) {
	path := globalPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadProject loads .llmap.json from workDir or the explicit config file.
func loadProject(workDir, configPath string) (Config, string, error) {
	path := filepath.Join(workDir, FileName)
	mustExist := false

	if configPath != "" {
		path = configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		mustExist = true

		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	}

	cfg, loaded, err := loadFile(path, mustExist)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadFile loads a config file. If mustExist is false, missing files return
// zero config.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse decodes a JSONC config document. Fields present but set to "" are
// rejected, since merging would silently ignore them.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	for _, field := range []string{"lock_timeout", "log_level", "log_format", "history_file"} {
		if val, exists := raw[field]; exists {
			if str, ok := val.(string); ok && str == "" {
				return Config{}, fmt.Errorf("%s %w", field, errFieldEmpty)
			}
		}
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.RegionSize != 0 {
		base.RegionSize = overlay.RegionSize
	}

	if overlay.LockTimeout != "" {
		base.LockTimeout = overlay.LockTimeout
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LogFormat != "" {
		base.LogFormat = overlay.LogFormat
	}

	if overlay.HistoryFile != "" {
		base.HistoryFile = overlay.HistoryFile
	}

	return base
}

func validate(cfg Config) error {
	if _, err := longmap.Layout(cfg.RegionSize); err != nil {
		return fmt.Errorf("region_size %d: %w", cfg.RegionSize, err)
	}

	timeout, err := time.ParseDuration(cfg.LockTimeout)
	if err != nil {
		return fmt.Errorf("lock_timeout: %w", err)
	}

	if timeout < 0 {
		return fmt.Errorf("lock_timeout %s is negative", cfg.LockTimeout)
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if cfg.LogFormat != logging.FormatText && cfg.LogFormat != logging.FormatJSON {
		return fmt.Errorf("log_format %q: %w", cfg.LogFormat, logging.ErrInvalidFormat)
	}

	return nil
}

// Format returns the config as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
