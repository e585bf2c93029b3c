// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is only acceptable in development.
const DefaultJWTSecret = "dev-secret-change-me"

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	AppEnv      string

	Auth   AuthConfig
	Upload UploadConfig

	RevocationSweepInterval time.Duration
}

// AuthConfig controls access tokens and login throttling.
type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	LoginRate      float64 // requests per second per client IP
	LoginBurst     int
}

// UploadConfig bounds transcript uploads and streamed ingests.
type UploadConfig struct {
	MaxBytes int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/chatpulse.db"),
		AppEnv:      getEnv("APP_ENV", ""),
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", DefaultJWTSecret),
			JWTIssuer:      getEnv("JWT_ISSUER", "chatpulse"),
			AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 3000*time.Minute),
			LoginRate:      getEnvFloat("LOGIN_RATE_PER_SEC", 1),
			LoginBurst:     getEnvInt("LOGIN_BURST", 5),
		},
		Upload: UploadConfig{
			MaxBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 100*1024*1024)),
		},
		RevocationSweepInterval: getEnvDuration("REVOCATION_SWEEP_INTERVAL", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET cannot be empty")
	}
	if !c.IsDevelopment() && c.Auth.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be set outside development")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL must be > 0")
	}
	if c.Auth.LoginRate <= 0 {
		return errors.New("LOGIN_RATE_PER_SEC must be > 0")
	}
	if c.Auth.LoginBurst <= 0 {
		return errors.New("LOGIN_BURST must be > 0")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.RevocationSweepInterval <= 0 {
		return errors.New("REVOCATION_SWEEP_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if c.AppEnv != "" {
		return c.AppEnv == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" || c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("90m") or a bare number of minutes.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Minute
	}
	return fallback
}
