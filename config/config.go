// Package config loads the application configuration from the environment,
// optionally seeded from a yaml file.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every tunable of the api and sweeper binaries.
type Config struct {
	// Environment is the running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `env:"DATABASE_URL" env-default:"postgres://localhost:5432/staybook?sslmode=disable" yaml:"databaseUrl"`

	// JWTSecret signs and verifies access tokens.
	JWTSecret string `env:"JWT_SECRET" env-default:"dev-secret" yaml:"jwtSecret"`

	HTTP struct {
		// Addr is the address and port the HTTP server listens on.
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadHeaderTimeout bounds how long reading request headers may take.
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout bounds writes of the response.
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// MetricsPath is the URL path where metrics are exposed.
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
	} `yaml:"http"`

	// SweepInterval is how often the completion sweep runs.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" env-default:"1m" yaml:"sweepInterval"`

	// GracefulShutdownTimeout bounds the wait for in-flight requests on shutdown.
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"`
}

// Load reads configuration from configPath (when non-empty) and the
// environment, environment taking precedence.
func Load(configPath string) (*Config, error) {
	var cfg Config
	var err error
	if configPath != "" {
		err = cleanenv.ReadConfig(configPath, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return &cfg, nil
}
