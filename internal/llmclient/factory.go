// Package llmclient builds the language model client for a configured provider.
package llmclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/robodriver/pkg/config"
)

var ErrMissingAPIKey = errors.New("api key is not set")

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// New returns a model client for the named provider.
func New(ctx context.Context, name string, pCfg config.ProviderConfig) (llms.Model, error) {
	if name == "" {
		return nil, errors.New("no enabled provider found in config")
	}
	if pCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: %w", name, ErrMissingAPIKey)
	}

	switch name {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		baseURL := pCfg.BaseURL
		if baseURL == "" && name == "openrouter" {
			baseURL = openRouterBaseURL
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		return llm, nil

	case "googleai", "gemini":
		opts := []googleai.Option{googleai.WithAPIKey(pCfg.APIKey)}
		if pCfg.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(pCfg.Model))
		}
		llm, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		return llm, nil

	default:
		return nil, fmt.Errorf("provider %s is not supported", name)
	}
}

// FromConfig picks the default provider of cfg and builds its client.
func FromConfig(ctx context.Context, cfg *config.Config) (string, llms.Model, error) {
	name, pCfg := cfg.GetDefaultProvider()
	model, err := New(ctx, name, pCfg)
	return name, model, err
}
