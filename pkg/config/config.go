// Package config loads the service settings from the environment, with an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application settings.
type Config struct {
	HTTPAddr             string
	DBDriver             string
	DBDSN                string
	JWTSecret            string
	TokenExpiry          time.Duration
	LogLevel             string
	PenaltySweepSchedule string
	EnforceFundLimit     bool

	ReportsBucket string
	ReportsRegion string
	S3AccessKey   string
	S3SecretKey   string
}

const defaultJWTSecret = "change-me-in-production"

var defaults = map[string]any{
	"HTTP_ADDR":              ":8080",
	"DB_DRIVER":              "sqlite3",
	"DB_DSN":                 "pundledger.db",
	"JWT_SECRET":             defaultJWTSecret,
	"TOKEN_EXPIRY":           "24h",
	"LOG_LEVEL":              "info",
	"PENALTY_SWEEP_SCHEDULE": "0 */6 * * *",
	"ENFORCE_FUND_LIMIT":     false,
	"REPORTS_S3_BUCKET":      "",
	"REPORTS_S3_REGION":      "us-east-1",
	"S3_ACCESS_KEY":          "",
	"S3_SECRET_KEY":          "",
}

// Load reads envFiles (".env" when none is given) into the process
// environment, then builds the Config from the environment. A missing env
// file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{
		HTTPAddr:             v.GetString("HTTP_ADDR"),
		DBDriver:             strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:                v.GetString("DB_DSN"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		TokenExpiry:          v.GetDuration("TOKEN_EXPIRY"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		PenaltySweepSchedule: v.GetString("PENALTY_SWEEP_SCHEDULE"),
		EnforceFundLimit:     v.GetBool("ENFORCE_FUND_LIMIT"),
		ReportsBucket:        v.GetString("REPORTS_S3_BUCKET"),
		ReportsRegion:        v.GetString("REPORTS_S3_REGION"),
		S3AccessKey:          v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:          v.GetString("S3_SECRET_KEY"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite3", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be a positive duration")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	return nil
}

// UsesDefaultSecret reports whether JWT_SECRET was left at its placeholder.
func (c *Config) UsesDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}
