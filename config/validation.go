package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const developmentJWTSecret = "dev-secret-change-in-production"

// ValidateConfig checks if the configuration meets the requirements for the given environment
func ValidateConfig(cfg *Config, env Environment) error {
	var problems []string

	if cfg.DatabaseURL == "" && cfg.DBName == "" {
		problems = append(problems, ValidationError{"DATABASE_URL", "required when DB_NAME is not set"}.Error())
	}
	if cfg.UsePgBouncer && cfg.PgBouncerURL == "" {
		problems = append(problems, ValidationError{"PGBOUNCER_URL", "required when USE_PGBOUNCER is true"}.Error())
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		problems = append(problems, ValidationError{"DB_MIN_CONNS", "must not exceed DB_MAX_CONNS"}.Error())
	}

	switch env {
	case Production, CI:
		if cfg.JWTSecret == "" || cfg.JWTSecret == developmentJWTSecret {
			problems = append(problems, ValidationError{"JWT_SECRET", "a real secret is required"}.Error())
		}
	default:
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = developmentJWTSecret
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}

	return nil
}
