// Package config loads bootstrap configuration from the environment.
// Runtime sync settings (interval, direction, strategy, enabled flag)
// live in the settings store and are re-read every cycle; env values
// here only seed that store on startup.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/classtop/classtop-sync/internal/schedule"
	"github.com/classtop/classtop-sync/internal/store"
	"github.com/classtop/classtop-sync/internal/syncer"
)

// Config holds all environment-based configuration for classtop-sync.
type Config struct {
	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// StorePath overrides the local database location.
	// Defaults to ~/.classtop-sync/classtop.db.
	StorePath string `env:"CLASSTOP_STORE_PATH"`

	// Seed values written into the settings store at startup when
	// non-empty; an empty value leaves whatever the user last
	// configured in place.
	ServerURL     string `env:"CLASSTOP_SERVER_URL"`
	ClientName    string `env:"CLASSTOP_CLIENT_NAME"`
	SyncEnabled   string `env:"CLASSTOP_SYNC_ENABLED"`
	SyncInterval  int    `env:"CLASSTOP_SYNC_INTERVAL"`
	SyncDirection string `env:"CLASSTOP_SYNC_DIRECTION"`
	SyncStrategy  string `env:"CLASSTOP_SYNC_STRATEGY"`

	// ListenAddr is used by the reference server binary only.
	ListenAddr string `env:"CLASSTOP_LISTEN_ADDR" envDefault:":8765"`
}

// Load reads configuration from environment variables. It first
// attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.StorePath == "" {
		path, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}

		cfg.StorePath = path
	}

	absPath, err := filepath.Abs(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}

	cfg.StorePath = absPath

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerURL != "" {
		if err := syncer.ValidateServerURL(c.ServerURL); err != nil {
			return err
		}
	}

	if c.SyncInterval < 0 {
		return fmt.Errorf("CLASSTOP_SYNC_INTERVAL must not be negative")
	}

	switch schedule.Direction(c.SyncDirection) {
	case "", schedule.DirectionUpload, schedule.DirectionDownload, schedule.DirectionBidirectional:
	default:
		return fmt.Errorf("CLASSTOP_SYNC_DIRECTION must be upload, download, or bidirectional")
	}

	if c.SyncStrategy != "" && !syncer.ValidStrategy(syncer.Strategy(c.SyncStrategy)) {
		return fmt.Errorf("CLASSTOP_SYNC_STRATEGY must be server_wins, local_wins, or newest_wins")
	}

	return nil
}

// SeedSettings writes the env-provided seed values into the settings
// store, skipping empty ones.
func (c *Config) SeedSettings(st *store.Store) error {
	seeds := map[string]string{
		syncer.SettingServerURL:  c.ServerURL,
		syncer.SettingClientName: c.ClientName,
		syncer.SettingEnabled:    c.SyncEnabled,
		syncer.SettingDirection:  c.SyncDirection,
		syncer.SettingStrategy:   c.SyncStrategy,
	}

	if c.SyncInterval > 0 {
		seeds[syncer.SettingInterval] = fmt.Sprintf("%d", c.SyncInterval)
	}

	for key, value := range seeds {
		if value == "" {
			continue
		}

		if err := st.SetSetting(key, value); err != nil {
			return fmt.Errorf("seeding setting %s: %w", key, err)
		}
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
