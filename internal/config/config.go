// Package config loads healthscope runtime configuration from file and
// environment, and builds the process logger.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/healthscope/healthscope/internal/ingestion"
	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/scoring"
)

// EnvPrefix prefixes every environment override, e.g. HEALTHSCOPE_STORE_DRIVER.
const EnvPrefix = "HEALTHSCOPE"

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Kafka     KafkaConfig     `yaml:"kafka" mapstructure:"kafka"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
	Recompute RecomputeConfig `yaml:"recompute" mapstructure:"recompute"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	APIKey          string        `yaml:"api_key" mapstructure:"api_key"`
	CORSOrigins     []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// StoreConfig selects and configures the account store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	AutoMigrate bool   `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

// StorageConfig selects the blob storage backend for uploads and exports.
type StorageConfig struct {
	Backend   string   `yaml:"backend" mapstructure:"backend"`
	LocalPath string   `yaml:"local_path" mapstructure:"local_path"`
	Bucket    string   `yaml:"bucket" mapstructure:"bucket"`
	S3        S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config holds S3-compatible endpoint settings.
type S3Config struct {
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

// KafkaConfig configures snapshot event publication. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// WebhookConfig holds the shared secret for CRM webhook signatures.
type WebhookConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// RecomputeConfig bounds portfolio recompute parallelism.
type RecomputeConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ScoringConfig overrides sub-score weights by key.
type ScoringConfig struct {
	Weights map[string]float64 `yaml:"weights" mapstructure:"weights"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An explicit path must
// exist; otherwise healthscope.yaml is looked up in ".", "./config" and
// "$HOME/.healthscope" and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("healthscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".healthscope"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "healthscope.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_path", "./data")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "account-health.snapshots")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("recompute.concurrency", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Environment lists arrive as one comma separated string.
	cfg.Kafka.Brokers = splitList(strings.Join(cfg.Kafka.Brokers, ","))
	cfg.Server.CORSOrigins = splitList(strings.Join(cfg.Server.CORSOrigins, ","))

	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	case "sqlite", "memory":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			return eris.Errorf("config: storage.bucket is required for the %s backend", c.Storage.Backend)
		}
	default:
		return eris.Errorf("config: unknown storage.backend %q", c.Storage.Backend)
	}

	if c.Recompute.Concurrency < 1 {
		return eris.Errorf("config: recompute.concurrency must be positive, got %d", c.Recompute.Concurrency)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if _, err := c.Weights(); err != nil {
		return err
	}
	return nil
}

// Weights returns the default weight table with scoring.weights applied.
func (c *Config) Weights() (scoring.Weights, error) {
	w, err := scoring.Defaults().Apply(c.Scoring.Weights)
	if err != nil {
		return scoring.Weights{}, eris.Wrap(err, "config: scoring.weights")
	}
	return w, nil
}

// StoreOptions maps the store section onto store.Open options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.Store.Driver,
		DatabaseURL: c.Store.DatabaseURL,
		SQLitePath:  c.Store.SQLitePath,
		Pool:        store.PoolConfig{MaxConns: c.Store.MaxConns, MinConns: c.Store.MinConns},
		AutoMigrate: c.Store.AutoMigrate,
	}
}

// StorageOptions maps the storage section onto ingestion.NewStorage options.
func (c *Config) StorageOptions() ingestion.StorageOptions {
	return ingestion.StorageOptions{
		Backend:   c.Storage.Backend,
		LocalPath: c.Storage.LocalPath,
		Bucket:    c.Storage.Bucket,
		S3: ingestion.S3Config{
			Bucket:    c.Storage.Bucket,
			Region:    c.Storage.S3.Region,
			Endpoint:  c.Storage.S3.Endpoint,
			AccessKey: c.Storage.S3.AccessKey,
			SecretKey: c.Storage.S3.SecretKey,
		},
	}
}

// InitLogger builds the zap logger described by cfg, installs it as the
// global logger and returns it.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
