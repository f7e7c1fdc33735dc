// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parcelfolio/parcelfolio/internal/store"
	"github.com/parcelfolio/parcelfolio/pkg/regrid"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig   `yaml:"store" mapstructure:"store"`
	Regrid regrid.Config `yaml:"regrid" mapstructure:"regrid"`
	Batch  BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server ServerConfig  `yaml:"server" mapstructure:"server"`
	Log    LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// BatchConfig configures bulk-create processing.
type BatchConfig struct {
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a configuration populated with the same defaults Load
// applies. Used to scaffold a starter config file.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      "postgres",
			DatabaseURL: "postgres://localhost:5432/parcelfolio",
		},
		Regrid: regrid.Config{
			BaseURL:     "https://app.regrid.com/api/v1",
			RateLimit:   10,
			TimeoutSecs: 15,
		},
		Batch:  BatchConfig{ChunkSize: 10},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARCELFOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one, even if empty: AutomaticEnv only surfaces
	// variables for keys viper already knows about.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 0)
	v.SetDefault("store.pool.min_conns", 0)
	v.SetDefault("regrid.token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.chunk_size", 10)
	v.SetDefault("regrid.base_url", "https://app.regrid.com/api/v1")
	v.SetDefault("regrid.rate_limit", 10)
	v.SetDefault("regrid.timeout_secs", 15)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
