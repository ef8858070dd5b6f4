// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strings"

	"peakshare/internal/observability"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Persistence drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Hydration sources.
const (
	HydrateSQL   = "sql"
	HydrateRedis = "redis"
	HydrateNone  = "none"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port              string `mapstructure:"PORT"`
	Env               string `mapstructure:"APP_ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	PersistenceDriver string `mapstructure:"PERSISTENCE_DRIVER"`
	SQLitePath        string `mapstructure:"SQLITE_PATH"`
	DBHost            string `mapstructure:"DB_HOST"`
	DBPort            string `mapstructure:"DB_PORT"`
	DBUser            string `mapstructure:"DB_USER"`
	DBPassword        string `mapstructure:"DB_PASSWORD"`
	DBName            string `mapstructure:"DB_NAME"`
	DBSSLMode         string `mapstructure:"DB_SSLMODE"`
	RedisURL          string `mapstructure:"REDIS_URL"`
	PersistQueueSize  int    `mapstructure:"PERSIST_QUEUE_SIZE"`
	HydrateFrom       string `mapstructure:"HYDRATE_FROM"`
	SeedDemo          bool   `mapstructure:"SEED_DEMO"`
	SeedUsers         int    `mapstructure:"SEED_USERS"`
	SeedPosts         int    `mapstructure:"SEED_POSTS"`
	AllowedOrigins    string `mapstructure:"ALLOWED_ORIGINS"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A local .env only fills variables the environment does not already set.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		observability.GlobalLogger.Info("loaded profile-specific configuration", "file", "config."+env+".yml")
	}

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PERSISTENCE_DRIVER", DriverSQLite)
	viper.SetDefault("SQLITE_PATH", "peakshare.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "peakshare")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("PERSIST_QUEUE_SIZE", 1024)
	viper.SetDefault("HYDRATE_FROM", HydrateSQL)
	viper.SetDefault("SEED_DEMO", false)
	viper.SetDefault("SEED_USERS", 12)
	viper.SetDefault("SEED_POSTS", 40)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.PersistenceDriver = strings.ToLower(strings.TrimSpace(c.PersistenceDriver))
	c.HydrateFrom = strings.ToLower(strings.TrimSpace(c.HydrateFrom))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.RedisURL = strings.TrimSpace(c.RedisURL)
}

// IsProduction reports whether the app runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.PersistQueueSize <= 0 {
		return errors.New("PERSIST_QUEUE_SIZE must be positive")
	}
	if c.SeedUsers < 0 || c.SeedPosts < 0 {
		return errors.New("SEED_USERS and SEED_POSTS must not be negative")
	}

	switch c.PersistenceDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DBHost == "" || c.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres driver")
		}
	case DriverNone:
	default:
		return fmt.Errorf("unknown PERSISTENCE_DRIVER %q", c.PersistenceDriver)
	}

	switch c.HydrateFrom {
	case HydrateSQL:
		if c.PersistenceDriver == DriverNone {
			return errors.New("HYDRATE_FROM=sql needs a PERSISTENCE_DRIVER")
		}
	case HydrateRedis:
		if c.RedisURL == "" {
			return errors.New("HYDRATE_FROM=redis needs REDIS_URL")
		}
	case HydrateNone:
	default:
		return fmt.Errorf("unknown HYDRATE_FROM %q", c.HydrateFrom)
	}

	if c.IsProduction() {
		if c.PersistenceDriver == DriverPostgres && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.PersistenceDriver == DriverPostgres && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.AllowedOrigins == "*" {
			observability.GlobalLogger.Warn("ALLOWED_ORIGINS is set to '*' in production")
		}
	}

	return nil
}
