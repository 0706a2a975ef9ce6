package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snips/internal/domain"
	"snips/internal/suggest"
)

func TestLoad(t *testing.T) {
	t.Setenv(EnvSnippetsPath, "/tmp/snippets")
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvModel, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/snippets", cfg.SnippetsPath)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, suggest.DefaultModel, cfg.Model)
}

func TestLoad_ModelOverride(t *testing.T) {
	t.Setenv(EnvSnippetsPath, "/tmp/snippets")
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvModel, "claude-sonnet-4-20250514")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Model)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv(EnvSnippetsPath, "")
	t.Setenv(EnvAPIKey, "")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	// The error names both required settings.
	assert.Contains(t, err.Error(), EnvSnippetsPath)
	assert.Contains(t, err.Error(), EnvAPIKey)
}
