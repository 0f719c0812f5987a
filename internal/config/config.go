package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/luke-gs/cadsync/internal/cad"
)

// Sync scope names accepted in sync_scope.
const (
	ScopeAll         = "all"
	ScopePatrolGroup = "patrol_group"
)

// Config is the operator's cadsync configuration.
type Config struct {
	APIURL      string
	OfficerID   string
	Callsign    string
	PatrolGroup string
	SyncScope   string
	PollSeconds int
	LogFile     string
	LogLevel    string
	LiveFeed    bool
}

const (
	defaultConfigPath  = "~/.config/cadsync/config.toml"
	defaultLogFile     = "~/.local/state/cadsync/cadsync.log"
	defaultAPIURL      = "127.0.0.1:8640"
	defaultPollSeconds = 15
	defaultLogLevel    = "info"
)

// DefaultPath returns the config location used when none is given.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:      defaultAPIURL,
		SyncScope:   ScopeAll,
		PollSeconds: defaultPollSeconds,
		LogFile:     mustExpand(defaultLogFile),
		LogLevel:    defaultLogLevel,
		LiveFeed:    true,
	}
}

// Load reads the config at path, falling back to defaults when it is missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL      string `toml:"api_url"`
		OfficerID   string `toml:"officer_id"`
		Callsign    string `toml:"callsign"`
		PatrolGroup string `toml:"patrol_group"`
		SyncScope   string `toml:"sync_scope"`
		PollSeconds int    `toml:"poll_seconds"`
		LogFile     string `toml:"log_file"`
		LogLevel    string `toml:"log_level"`
		LiveFeed    *bool  `toml:"live_feed"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIURL = orDefault(raw.APIURL, defaultAPIURL)
	cfg.OfficerID = strings.TrimSpace(raw.OfficerID)
	cfg.Callsign = strings.TrimSpace(raw.Callsign)
	cfg.PatrolGroup = strings.TrimSpace(raw.PatrolGroup)
	cfg.SyncScope = strings.ToLower(orDefault(raw.SyncScope, ScopeAll))
	if raw.PollSeconds > 0 {
		cfg.PollSeconds = raw.PollSeconds
	}
	cfg.LogFile = mustExpand(orDefault(raw.LogFile, defaultLogFile))
	cfg.LogLevel = strings.ToLower(orDefault(raw.LogLevel, defaultLogLevel))
	if raw.LiveFeed != nil {
		cfg.LiveFeed = *raw.LiveFeed
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks fields that have no usable fallback.
func (c Config) Validate() error {
	switch c.SyncScope {
	case ScopeAll:
	case ScopePatrolGroup:
		if c.PatrolGroup == "" {
			return fmt.Errorf("sync_scope %q requires patrol_group", ScopePatrolGroup)
		}
	default:
		return fmt.Errorf("invalid sync_scope %q (want %q or %q)", c.SyncScope, ScopeAll, ScopePatrolGroup)
	}
	return nil
}

// PollInterval returns the background sync cadence.
func (c Config) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return defaultPollSeconds * time.Second
	}
	return time.Duration(c.PollSeconds) * time.Second
}

// Scope returns the sync scope polled in the background.
func (c Config) Scope() cad.SyncScope {
	if c.SyncScope == ScopePatrolGroup && c.PatrolGroup != "" {
		return cad.PatrolGroupScope(c.PatrolGroup)
	}
	return cad.FullScope()
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves "~" and relative paths to an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
