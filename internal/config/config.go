package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"port"`
	PostgresURL    string        `mapstructure:"postgres_url"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	KafkaBrokers   string        `mapstructure:"kafka_brokers"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	MongoURI       string        `mapstructure:"mongo_uri"`
	MongoDatabase  string        `mapstructure:"mongo_database"`
	CatalogURL     string        `mapstructure:"catalog_service_url"`
	PaymentURL     string        `mapstructure:"payment_service_url"`
	OTLPEndpoint   string        `mapstructure:"otel_exporter_otlp_endpoint"`
	LogLevel       string        `mapstructure:"log_level"`
	AddressTTL     time.Duration `mapstructure:"address_cache_ttl"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
}

var defaults = map[string]any{
	"port":                        "8081",
	"postgres_url":                "",
	"migrations_path":             "file://migrations",
	"kafka_brokers":               "",
	"redis_addr":                  "",
	"redis_password":              "",
	"redis_db":                    0,
	"mongo_uri":                   "",
	"mongo_database":              "foodflow",
	"catalog_service_url":         "",
	"payment_service_url":         "",
	"otel_exporter_otlp_endpoint": "",
	"log_level":                   "info",
	"address_cache_ttl":           "30s",
	"http_timeout":                "10s",
}

// Load reads configuration from the environment (upper-cased keys, e.g.
// POSTGRES_URL), optionally overlaid on the YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger returns the JSON logger every binary writes to stdout.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.Level()}))
}
