package config

import (
	"os"
)

// Environment represents the current runtime environment
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	CI          Environment = "ci"
	Production  Environment = "production"
)

// GetEnvironment determines the current environment
func GetEnvironment() Environment {
	// CI environment is automatically detected
	if os.Getenv("CI") == "true" {
		return CI
	}

	env := os.Getenv("ENV")
	if env == "" {
		// Deployments shared with the web frontend only set NODE_ENV
		env = os.Getenv("NODE_ENV")
	}

	switch env {
	case "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction returns true if the current environment is production
func IsProduction() bool {
	return GetEnvironment() == Production
}
