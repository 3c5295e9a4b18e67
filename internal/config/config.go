package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field maps 1:1 to a documented env var.
type Config struct {
	// Server (local API consumed by the touchscreen UI process)
	Port        int    `mapstructure:"PORT"`
	Env         string `mapstructure:"APP_ENV"` // development | production
	LocalAPIKey string `mapstructure:"LOCAL_API_KEY"`
	// SupervisorPINHash is a bcrypt hash; enrollment endpoints require the
	// matching plaintext PIN in the request.
	SupervisorPINHash string `mapstructure:"SUPERVISOR_PIN_HASH"`

	// Remote BioEntry API
	APIBaseURL    string `mapstructure:"API_BASE_URL"`
	APIKey        string `mapstructure:"API_KEY"`
	TerminalID    string `mapstructure:"TERMINAL_ID"`
	APITimeoutSec int    `mapstructure:"API_TIMEOUT_SECONDS"`
	APIMaxRetries int    `mapstructure:"API_MAX_RETRIES"`
	APIRetryDelay int    `mapstructure:"API_RETRY_DELAY_SECONDS"`

	// Database
	DatabasePath string `mapstructure:"DATABASE_PATH"`

	// Hardware capabilities
	CameraEnabled      bool   `mapstructure:"CAMERA_ENABLED"`
	FingerprintEnabled bool   `mapstructure:"FINGERPRINT_ENABLED"`
	FingerprintSocket  string `mapstructure:"FINGERPRINT_SOCKET"`
	MockHardware       bool   `mapstructure:"MOCK_HARDWARE"`

	// Location
	LocationName string  `mapstructure:"LOCATION_NAME"`
	LocationLat  float64 `mapstructure:"LOCATION_LAT"`
	LocationLng  float64 `mapstructure:"LOCATION_LNG"`

	// Sync
	SyncIntervalSec   int `mapstructure:"SYNC_INTERVAL_SECONDS"`
	SyncBatchSize     int `mapstructure:"SYNC_BATCH_SIZE"`
	SyncMaxAttempts   int `mapstructure:"SYNC_MAX_ATTEMPTS"`
	SyncBackoffCapSec int `mapstructure:"SYNC_BACKOFF_CAP_SECONDS"`
	EntryDebounceSec  int `mapstructure:"ENTRY_DEBOUNCE_SECONDS"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Sensible defaults for development
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOCAL_API_KEY", "terminal-ui-key")
	viper.SetDefault("SUPERVISOR_PIN_HASH", "")
	viper.SetDefault("API_BASE_URL", "http://localhost:8000")
	viper.SetDefault("API_KEY", "terminal_key_001")
	viper.SetDefault("TERMINAL_ID", "TERMINAL_001")
	viper.SetDefault("API_TIMEOUT_SECONDS", 30)
	viper.SetDefault("API_MAX_RETRIES", 3)
	viper.SetDefault("API_RETRY_DELAY_SECONDS", 2)
	viper.SetDefault("DATABASE_PATH", "data/terminal.db")
	viper.SetDefault("CAMERA_ENABLED", true)
	viper.SetDefault("FINGERPRINT_ENABLED", true)
	viper.SetDefault("FINGERPRINT_SOCKET", "/run/bioentry/fingerprint.sock")
	viper.SetDefault("MOCK_HARDWARE", false)
	viper.SetDefault("LOCATION_NAME", "Terminal Principal")
	viper.SetDefault("LOCATION_LAT", 0.0)
	viper.SetDefault("LOCATION_LNG", 0.0)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 300)
	viper.SetDefault("SYNC_BATCH_SIZE", 50)
	viper.SetDefault("SYNC_MAX_ATTEMPTS", 5)
	viper.SetDefault("SYNC_BACKOFF_CAP_SECONDS", 3600)
	viper.SetDefault("ENTRY_DEBOUNCE_SECONDS", 0)

	// Optional .env file for local development — does not fail if missing
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// APITimeout returns the configured remote API timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSec) * time.Second
}

// SyncInterval returns the configured sync loop interval as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSec) * time.Second
}

// EntryDebounce returns the minimum interval between two access records
// for the same cedula. Zero disables the debounce.
func (c *Config) EntryDebounce() time.Duration {
	return time.Duration(c.EntryDebounceSec) * time.Second
}
