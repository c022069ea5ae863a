package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ammar0144/reportq/pkg/db"
	"github.com/ammar0144/reportq/pkg/definitions"
	"github.com/ammar0144/reportq/pkg/redis"
	"github.com/ammar0144/reportq/pkg/report"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REPORTQ_DATABASE_HOST
const EnvPrefix = "REPORTQ"

// Config is the complete application configuration
type Config struct {
	Database    db.Config          `json:"database" yaml:"database" mapstructure:"database"`
	Redis       redis.Config       `json:"redis" yaml:"redis" mapstructure:"redis"`
	Cache       report.CacheConfig `json:"cache" yaml:"cache" mapstructure:"cache"`
	Definitions definitions.Config `json:"definitions" yaml:"definitions" mapstructure:"definitions"`
	Log         LogConfig          `json:"log" yaml:"log" mapstructure:"log"`
	HTTP        HTTPConfig         `json:"http" yaml:"http" mapstructure:"http"`
}

// LogConfig controls the application logger
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`    // debug, info, warn, error
	Format string `json:"format" yaml:"format" mapstructure:"format"` // json, text
}

// HTTPConfig controls the report API server
type HTTPConfig struct {
	Addr           string   `json:"addr" yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Default returns the configuration used when no file or env override is present
func Default() *Config {
	return &Config{
		Database:    *db.DefaultConfig(),
		Redis:       *redis.DefaultConfig(),
		Cache:       report.DefaultCacheConfig(),
		Definitions: definitions.DefaultConfig(),
		Log:         LogConfig{Level: "info", Format: "text"},
		HTTP:        HTTPConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Definitions.Validate(); err != nil {
		return fmt.Errorf("definitions: %w", err)
	}
	return nil
}

// envKeys are bound explicitly so env overrides apply even without a config file
var envKeys = []string{
	"database.driver",
	"database.host",
	"database.port",
	"database.database",
	"database.username",
	"database.password",
	"database.path",
	"database.ssl_mode",
	"database.query_timeout",
	"redis.enabled",
	"redis.host",
	"redis.port",
	"redis.password",
	"redis.database",
	"cache.ttl",
	"definitions.path",
	"log.level",
	"log.format",
	"http.addr",
}

// Load reads reportq.yaml from configPath (if present) over the defaults,
// then applies REPORTQ_* environment overrides.
// An explicit file path may be given instead of a directory.
// The result is not validated; callers validate the sections they use.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if strings.HasSuffix(configPath, ".yaml") || strings.HasSuffix(configPath, ".yml") {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("reportq")
		v.SetConfigType("yaml")
		if configPath != "" {
			v.AddConfigPath(configPath)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the application logger writing to w
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
