// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, TokenService) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// minSecretLength is the shortest HMAC secret accepted for token signing.
const minSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the Bazaar API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8000"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing secrets. Access and refresh tokens never share a key.
	AccessSecret  string `env:"ACCESS_SECRET,required"`
	RefreshSecret string `env:"REFRESH_SECRET,required"`

	// ClientURL is the SPA origin, used for CORS and for password reset links.
	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:5173"`

	// Outbound mail (SMTP). An empty host selects the log-only mailer in development.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"     envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"     envDefault:"no-reply@bazaar.market"`

	// Per-email throttle for login, OTP resend and password reset requests.
	AuthThrottleMax    int           `env:"AUTH_THROTTLE_MAX"    envDefault:"10"`
	AuthThrottleWindow time.Duration `env:"AUTH_THROTTLE_WINDOW" envDefault:"15m"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that would weaken token signing or mail delivery.
func (c *Config) Validate() error {
	if len(c.AccessSecret) < minSecretLength {
		return fmt.Errorf("config: ACCESS_SECRET must be at least %d bytes", minSecretLength)
	}
	if len(c.RefreshSecret) < minSecretLength {
		return fmt.Errorf("config: REFRESH_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("config: ACCESS_SECRET and REFRESH_SECRET must differ")
	}
	if c.IsProduction() && c.SMTPHost == "" {
		return errors.New("config: SMTP_HOST is required in production")
	}
	if c.AuthThrottleMax <= 0 || c.AuthThrottleWindow <= 0 {
		return errors.New("config: AUTH_THROTTLE_MAX and AUTH_THROTTLE_WINDOW must be positive")
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigin returns the single browser origin permitted by CORS.
func (c *Config) AllowedOrigin() string {
	return c.ClientURL
}
