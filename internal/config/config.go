// Package config handles configuration file loading and parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "800ms", "2s", "1m30s", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Bare integers are treated as milliseconds
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '800ms', '2s' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the configuration for audioduckd.
// Loaded from ~/.config/audioduck/config.toml
type Config struct {
	Levels   LevelsConfig   `toml:"levels"`
	Fade     FadeConfig     `toml:"fade"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Playback PlaybackConfig `toml:"playback"`
	History  HistoryConfig  `toml:"history"`
	Log      LogConfig      `toml:"log"`
}

// LevelsConfig contains the duck and normal volume levels.
type LevelsConfig struct {
	Duck   float64 `toml:"duck"`   // Volume while ducked, 0.0-1.0
	Normal float64 `toml:"normal"` // Volume when restored, 0.0-1.0
}

// FadeConfig contains volume fade settings.
type FadeConfig struct {
	Duration Duration `toml:"duration"` // Total fade time, e.g. "800ms"
	Steps    int      `toml:"steps"`    // Number of volume increments
}

// MonitorConfig contains poll-loop settings.
type MonitorConfig struct {
	CheckInterval   Duration `toml:"check_interval"`    // Time between activity polls
	RestoreDelay    Duration `toml:"restore_delay"`     // Continuous silence required before restoring
	Apps            []string `toml:"apps"`              // Applications whose audio triggers ducking
	HoldWhilePaused bool     `toml:"hold_while_paused"` // Keep ducked while a monitored media session is merely paused
}

// PlaybackConfig contains music playback settings.
type PlaybackConfig struct {
	PauseWhenDucked bool     `toml:"pause_when_ducked"` // Pause the music app after ducking
	MusicApps       []string `toml:"music_apps"`        // Candidate music apps, first running match wins
}

// HistoryConfig contains event journal settings.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Levels: LevelsConfig{
			Duck:   0.1,
			Normal: 1.0,
		},
		Fade: FadeConfig{
			Duration: Duration(800 * time.Millisecond),
			Steps:    20,
		},
		Monitor: MonitorConfig{
			CheckInterval: Duration(100 * time.Millisecond),
			RestoreDelay:  Duration(500 * time.Millisecond),
			Apps: []string{
				"firefox",
				"chromium",
				"chrome",
				"brave",
				"discord",
				"vlc",
				"zoom",
				"teams",
			},
			HoldWhilePaused: false,
		},
		Playback: PlaybackConfig{
			PauseWhenDucked: true,
			MusicApps:       []string{"spotify"},
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "audioduck", "config.toml"), nil
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "audioduck")
}

// JournalPath returns the path to the event journal JSONL file.
func JournalPath() string {
	return filepath.Join(DataPath(), "events.jsonl")
}

// Load loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed; writes atomically via temp file.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Levels.Duck < 0 || c.Levels.Duck > 1 {
		return fmt.Errorf("levels.duck must be between 0.0 and 1.0, got %v", c.Levels.Duck)
	}
	if c.Levels.Normal < 0 || c.Levels.Normal > 1 {
		return fmt.Errorf("levels.normal must be between 0.0 and 1.0, got %v", c.Levels.Normal)
	}
	if c.Fade.Steps < 1 {
		return fmt.Errorf("fade.steps must be at least 1, got %d", c.Fade.Steps)
	}
	if c.Fade.Duration.Duration() <= 0 {
		return fmt.Errorf("fade.duration must be positive, got %v", c.Fade.Duration.Duration())
	}
	if c.Monitor.CheckInterval.Duration() <= 0 {
		return fmt.Errorf("monitor.check_interval must be positive, got %v", c.Monitor.CheckInterval.Duration())
	}
	if c.Monitor.RestoreDelay.Duration() < 0 {
		return fmt.Errorf("monitor.restore_delay must not be negative, got %v", c.Monitor.RestoreDelay.Duration())
	}
	if len(c.Monitor.Apps) == 0 {
		return fmt.Errorf("monitor.apps must list at least one application")
	}
	if len(c.Playback.MusicApps) == 0 {
		return fmt.Errorf("playback.music_apps must list at least one application")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q, must be debug, info, warn or error", c.Log.Level)
	}
	return nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return fmt.Errorf("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}
