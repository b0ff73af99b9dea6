package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/cognicore/recettes/pkg/recettes/internalerr"
)

// Store backends accepted by RECETTES_STORE.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Server is the service configuration read from the environment.
type Server struct {
	Addr       string `env:"RECETTES_ADDR" envDefault:":8080"`
	Store      string `env:"RECETTES_STORE" envDefault:"memory"`
	SQLitePath string `env:"RECETTES_SQLITE_PATH" envDefault:"recettes.db"`
	BadgerDir  string `env:"RECETTES_BADGER_DIR" envDefault:"recettes-badger"`
	RedisAddr  string `env:"RECETTES_REDIS_ADDR" envDefault:"localhost:6379"`
	JWTSecret  string `env:"RECETTES_JWT_SECRET"`
	TuningFile string `env:"RECETTES_TUNING_FILE"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadServer parses the service configuration from the environment.
func LoadServer() (*Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the backend choice and its required setting.
func (c *Server) Validate() error {
	switch c.Store {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: RECETTES_SQLITE_PATH is empty", internalerr.ErrInvalidConfig)
		}
	case BackendBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("%w: RECETTES_BADGER_DIR is empty", internalerr.ErrInvalidConfig)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: RECETTES_REDIS_ADDR is empty", internalerr.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", internalerr.ErrInvalidConfig, c.Store)
	}
	return nil
}
