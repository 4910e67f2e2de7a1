// Package config loads service configuration from environment variables and
// an optional .env file. Environment variables take precedence over .env
// values, which take precedence over defaults.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr    string // HTTP server bind address
	MetricsAddr string // Prometheus metrics bind address; empty disables it

	DBDriver string // sqlite or postgres
	DBDSN    string

	JWTSecret     string
	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string
}

// Load reads configuration. Returns an error for constraint violations only;
// missing optional settings fall back to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig() // .env is optional
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("ADMIN_USER", "admin")
	v.SetDefault("CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		HTTPAddr:      v.GetString("HTTP_ADDR"),
		MetricsAddr:   v.GetString("METRICS_ADDR"),
		DBDriver:      v.GetString("DB_DRIVER"),
		DBDSN:         v.GetString("DB_DSN"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		AdminUser:     v.GetString("ADMIN_USER"),
		AdminPassHash: v.GetString("ADMIN_PASS_HASH"),
		CORSOrigins:   v.GetStringSlice("CORS_ORIGINS"),
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("config: unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	return cfg, nil
}
