// Package config loads the service settings from the environment, an
// optional .env file and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the server and the admin CLI read.
type Config struct {
	AppPort string

	DBDriver    string
	DatabaseDSN string
	SeedCatalog bool

	JWTSecret string
	TokenTTL  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RabbitMQURL string
	OrderQueue  string

	CORSAllowOrigins string

	LogLevel  string
	LogFormat string
}

// ErrMissingSecret is returned when no JWT signing secret is configured.
var ErrMissingSecret = errors.New("JWT_SECRET must be set")

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "etalase.db")
	v.SetDefault("SEED_CATALOG", true)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "1m")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("ORDER_QUEUE", "order_queue")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads .env (when present) into the environment and builds a Config
// from a fresh viper instance.
func Load() (*Config, error) {
	return FromViper(newViper())
}

// LoadForTools is Load without the JWT_SECRET requirement, for commands
// that never sign tokens.
func LoadForTools() (*Config, error) {
	return build(newViper())
}

func newViper() *viper.Viper {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg, err := build(v)
	if err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	return cfg, nil
}

func build(v *viper.Viper) (*Config, error) {
	tokenTTL, err := parseDuration(v, "TOKEN_TTL")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration(v, "CACHE_TTL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppPort:          v.GetString("APP_PORT"),
		DBDriver:         strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:      v.GetString("DATABASE_DSN"),
		SeedCatalog:      v.GetBool("SEED_CATALOG"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		TokenTTL:         tokenTTL,
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		CacheTTL:         cacheTTL,
		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		OrderQueue:       v.GetString("ORDER_QUEUE"),
		CORSAllowOrigins: v.GetString("CORS_ALLOW_ORIGINS"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
	}

	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	if !strings.Contains(cfg.AppPort, ":") {
		cfg.AppPort = ":" + cfg.AppPort
	}
	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
