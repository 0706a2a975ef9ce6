// Package config builds the process configuration once at startup. Nothing
// below the constructors reads the environment.
package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"snips/internal/domain"
	"snips/internal/suggest"
)

// Environment variables recognized by Load.
const (
	EnvSnippetsPath = "SNIPPETS_PATH"
	EnvAPIKey       = "ANTHROPIC_API_KEY"
	EnvModel        = "SNIPPETS_MODEL"
)

// Config is the explicit configuration value passed into the store and
// suggestion client constructors.
type Config struct {
	SnippetsPath string
	APIKey       string
	Model        string
}

// Load reads configuration from a .env file (when present) and the
// environment. Both the snippets path and the API credential are required.
func Load() (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(EnvModel, suggest.DefaultModel)

	cfg := &Config{
		SnippetsPath: v.GetString(EnvSnippetsPath),
		APIKey:       v.GetString(EnvAPIKey),
		Model:        v.GetString(EnvModel),
	}

	if cfg.SnippetsPath == "" || cfg.APIKey == "" {
		return nil, domain.E(domain.KindConfiguration,
			"missing required configuration: set %s to the snippets folder and %s to the API credential",
			EnvSnippetsPath, EnvAPIKey)
	}

	return cfg, nil
}
