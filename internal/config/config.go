// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting of the game server.
type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	GinMode    string `env:"GIN_MODE"`
	NumWorkers int    `env:"NUM_WORKERS" envDefault:"5"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"sqlite"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"game.db"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5433"`
	DBUser     string `env:"DB_USER" envDefault:"trader"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"trading123"`
	DBName     string `env:"DB_NAME" envDefault:"trading_db"`
	DBLogSQL   bool   `env:"DB_LOG_SQL"`

	EventMinInterval time.Duration `env:"EVENT_MIN_INTERVAL" envDefault:"10s"`
	EventMaxInterval time.Duration `env:"EVENT_MAX_INTERVAL" envDefault:"60s"`

	TelegramToken    string `env:"TELEGRAM_TOKEN"`
	BotName          string `env:"BOT_NAME" envDefault:"MarketGameBot"`
	WelcomeImageURL  string `env:"WELCOME_IMAGE_URL"`
	ReferralImageURL string `env:"REFERRAL_IMAGE_URL"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults or environment variables")
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c Config) Validate() error {
	var errs []error
	if c.NumWorkers < 1 {
		errs = append(errs, fmt.Errorf("NUM_WORKERS must be positive, got %d", c.NumWorkers))
	}
	if c.EventMinInterval <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_MIN_INTERVAL must be positive, got %s", c.EventMinInterval))
	}
	if c.EventMaxInterval < c.EventMinInterval {
		errs = append(errs, fmt.Errorf("EVENT_MAX_INTERVAL %s is below EVENT_MIN_INTERVAL %s", c.EventMaxInterval, c.EventMinInterval))
	}
	switch c.DBDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	return errors.Join(errs...)
}

// Postgres returns the PostgreSQL connection settings.
func (c Config) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
	}
}

// InviteLinkBase is the deep link prefix to which invite codes are appended.
func (c Config) InviteLinkBase() string {
	return "https://t.me/" + c.BotName + "?start="
}
