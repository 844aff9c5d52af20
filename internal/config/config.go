// Package config loads runtime settings for the data layer from an optional
// config.yaml plus STOCKLEDGER_-prefixed environment overrides.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the data-layer runtime settings.
type Config struct {
	// Storage selects the document store backend: memory|sqlite|postgres.
	Storage string
	// SQLitePath is the database file used when Storage is sqlite.
	SQLitePath string
	// PostgresDSN overrides the connection string when Storage is postgres.
	PostgresDSN string
	// BlobDriver selects the attachment archive backend: fs|s3|memory.
	BlobDriver string
	// ConflictRetries bounds optimistic-concurrency retry attempts per save.
	ConflictRetries int
	// IndexRetries bounds query retries while indexes warm up.
	IndexRetries int
	// LogLevel is the minimum log level: debug|info|warn|error.
	LogLevel string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Storage:         "memory",
		SQLitePath:      "./data/stockledger.db",
		BlobDriver:      "fs",
		ConflictRetries: 3,
		IndexRetries:    3,
		LogLevel:        "info",
	}
}

// Load reads config.yaml from configPath (if present) and applies environment
// overrides such as STOCKLEDGER_STORAGE and STOCKLEDGER_CONFLICT_RETRIES.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("STOCKLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"storage", "sqlite_path", "postgres_dsn",
		"blob_driver", "conflict_retries", "index_retries", "log_level",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, err
		}
	}

	// Missing config file is fine; defaults plus env cover it.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	if v.IsSet("storage") {
		cfg.Storage = v.GetString("storage")
	}
	if v.IsSet("sqlite_path") {
		cfg.SQLitePath = v.GetString("sqlite_path")
	}
	if v.IsSet("postgres_dsn") {
		cfg.PostgresDSN = v.GetString("postgres_dsn")
	}
	if v.IsSet("blob_driver") {
		cfg.BlobDriver = v.GetString("blob_driver")
	}
	if v.IsSet("conflict_retries") {
		cfg.ConflictRetries = v.GetInt("conflict_retries")
	}
	if v.IsSet("index_retries") {
		cfg.IndexRetries = v.GetInt("index_retries")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}

	return cfg, nil
}
