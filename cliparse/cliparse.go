package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         int    `env:"PORT" env-default:"3318"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string `env:"DATABASE_TYPE" env-default:"sqlite"`
	IPHashSalt   string `env:"IP_HASH_SALT"`

	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"5s"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" env-default:"1"`
	SweepInterval   time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL" env-default:"10m"`
	CommitTimeout   time.Duration `env:"COMMIT_TIMEOUT" env-default:"2s"`

	// RedisURL switches the rate limiter to the shared Redis store when set
	RedisURL string `env:"REDIS_URL"`

	LogLevel      string `env:"LOG_LEVEL" env-default:"info"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN" env-default:"*"`
}

// ParseFlags loads .env, reads the environment, then applies CLI overrides
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	fs := flag.NewFlagSet("quickly-vote", flag.ContinueOnError)

	// Env values become flag defaults, so anything set on the command line wins
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.IPHashSalt, "ip-salt", cfg.IPHashSalt, "IP hash salt (prefer env)")

	fs.DurationVar(&cfg.RateLimitWindow, "rate-window", cfg.RateLimitWindow, "Rate limit window")
	fs.IntVar(&cfg.RateLimitMax, "rate-max", cfg.RateLimitMax, "Requests allowed per window")
	fs.DurationVar(&cfg.SweepInterval, "sweep", cfg.SweepInterval, "Rate limit sweep interval")
	fs.DurationVar(&cfg.CommitTimeout, "commit-timeout", cfg.CommitTimeout, "Per-poll commit lock timeout")

	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL for the shared rate limiter")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.AllowedOrigin, "origin", cfg.AllowedOrigin, "Allowed CORS origin")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	c.DatabaseType = strings.ToLower(c.DatabaseType)
	if c.DatabaseType != "sqlite" && c.DatabaseType != "postgres" {
		return fmt.Errorf("unknown database type %q (want sqlite or postgres)", c.DatabaseType)
	}

	// Secrets - MUST be provided
	if c.IPHashSalt == "" {
		return errors.New("IP_HASH_SALT required")
	}

	if c.RateLimitWindow <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.RateLimitMax <= 0 {
		return errors.New("rate limit max must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.CommitTimeout <= 0 {
		return errors.New("commit timeout must be positive")
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel converts LogLevel to a slog.Level
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
