package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/robodriver/pkg/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("openai", func(t *testing.T) {
		model, err := New(ctx, "openai", config.ProviderConfig{APIKey: "sk-test", Model: "gpt-4o-mini"})
		require.NoError(t, err)
		assert.NotNil(t, model)
	})

	t.Run("openrouter", func(t *testing.T) {
		model, err := New(ctx, "openrouter", config.ProviderConfig{APIKey: "sk-or-test", Model: "openai/gpt-4o-mini"})
		require.NoError(t, err)
		assert.NotNil(t, model)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := New(ctx, "openai", config.ProviderConfig{Model: "gpt-4o-mini"})
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(ctx, "llamafile", config.ProviderConfig{APIKey: "x"})
		assert.ErrorContains(t, err, "not supported")
	})

	t.Run("none enabled", func(t *testing.T) {
		_, err := New(ctx, "", config.ProviderConfig{})
		assert.ErrorContains(t, err, "no enabled provider")
	})
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.App.Provider = "openai"
	cfg.Providers["openai"] = config.ProviderConfig{APIKey: "sk-test", Model: "gpt-4o-mini", Enabled: true}

	name, model, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", name)
	assert.NotNil(t, model)
}
