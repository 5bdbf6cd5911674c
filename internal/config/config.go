package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	syncerrors "github.com/legandy/playlistsync/internal/errors"
)

// Config holds all environment-based configuration for playlistsync.
type Config struct {
	// The two watched playlist folders. PCDir holds absolute-path .m3u
	// playlists, PhoneDir holds relative-path playlists (.m3u8 accepted,
	// renamed to .m3u on the first full sync). Both are required.
	PCDir    string `env:"PLAYLIST_PC_DIR"`
	PhoneDir string `env:"PLAYLIST_PHONE_DIR"`

	// Application data directory holding Conversion/, Backups/, Logs/
	// and the history database. Defaults to ~/.playlist-sync.
	DataDir string `env:"PLAYLIST_DATA_DIR"`

	// ProcessDelaySeconds is the debounce window: notifications for the
	// same playlist within this window coalesce into one reconciliation.
	ProcessDelaySeconds float64 `env:"PROCESS_DELAY_SECONDS" envDefault:"1"`

	// BlockDurationSeconds is how long a just-written destination path
	// ignores change notifications, preventing sync feedback loops.
	BlockDurationSeconds float64 `env:"BLOCK_DURATION_SECONDS" envDefault:"2"`

	// MaxBackups is the per-playlist backup retention count.
	MaxBackups int `env:"MAX_BACKUPS" envDefault:"5"`

	// MaxLogFiles caps rotated activity log files.
	MaxLogFiles int `env:"MAX_LOG_FILES" envDefault:"10"`

	// ScheduleInterval optionally runs a periodic full sync in addition
	// to live watching: "15min", "30min", "hourly", or a Go duration.
	// Empty or "never" disables it.
	ScheduleInterval string `env:"SCHEDULE_INTERVAL" envDefault:""`

	// AllowEscapingPaths lets the codec emit ..-relative track paths
	// for files outside a side's base folder. When false such lines
	// pass through unchanged with a warning.
	AllowEscapingPaths bool `env:"ALLOW_ESCAPING_PATHS" envDefault:"false"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing settings to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}

		cfg.DataDir = dir
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Resolve the watched folders to absolute paths at startup. The
	// engine keys its suppression window by absolute destination path
	// and the codec relies on absolute base folders for relative-path
	// computation.
	for _, dir := range []*string{&cfg.PCDir, &cfg.PhoneDir, &cfg.DataDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("resolving %s to absolute path: %w", *dir, err)
		}

		*dir = abs
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.PCDir == "" {
		return fmt.Errorf("%w: PLAYLIST_PC_DIR is required", syncerrors.ErrConfigIncomplete)
	}

	if c.PhoneDir == "" {
		return fmt.Errorf("%w: PLAYLIST_PHONE_DIR is required", syncerrors.ErrConfigIncomplete)
	}

	if c.ProcessDelaySeconds < 0 {
		return fmt.Errorf("%w: PROCESS_DELAY_SECONDS must not be negative", syncerrors.ErrConfigIncomplete)
	}

	if c.BlockDurationSeconds < 0 {
		return fmt.Errorf("%w: BLOCK_DURATION_SECONDS must not be negative", syncerrors.ErrConfigIncomplete)
	}

	if c.MaxBackups < 1 {
		return fmt.Errorf("%w: MAX_BACKUPS must be at least 1", syncerrors.ErrConfigIncomplete)
	}

	if c.MaxLogFiles < 1 {
		return fmt.Errorf("%w: MAX_LOG_FILES must be at least 1", syncerrors.ErrConfigIncomplete)
	}

	return nil
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".playlist-sync"), nil
}

// ProcessDelay returns the debounce window as a duration.
func (c *Config) ProcessDelay() time.Duration {
	return time.Duration(c.ProcessDelaySeconds * float64(time.Second))
}

// BlockDuration returns the suppression window as a duration.
func (c *Config) BlockDuration() time.Duration {
	return time.Duration(c.BlockDurationSeconds * float64(time.Second))
}

// ConversionDir is where canonical converted playlist copies live.
func (c *Config) ConversionDir() string {
	return filepath.Join(c.DataDir, "Conversion")
}

// BackupsDir is the root of the rotated backup tree.
func (c *Config) BackupsDir() string {
	return filepath.Join(c.DataDir, "Backups")
}

// LogsDir holds the append-only activity log.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "Logs")
}

// StatePath is the sync history database file.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.db")
}
