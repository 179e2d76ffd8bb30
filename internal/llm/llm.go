// Package llm builds langchaingo models from provider configuration.
package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/senga07/xAgentic/pkg/config"
)

// NewModel constructs a model for a named provider. OpenAI-compatible
// endpoints (OpenAI, OpenRouter, local gateways) are selected by setting
// base_url; other provider names are rejected.
func NewModel(name string, cfg config.ProviderConfig) (llms.Model, error) {
	switch name {
	case "openai", "openrouter", "local":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// Models resolves the planner and executor models from the config. The
// planner role covers planning and summarization; when only one
// provider is enabled it serves both roles.
func Models(cfg *config.Config) (planner, executor llms.Model, err error) {
	name, pCfg, ok := cfg.ProviderForRole("planner")
	if !ok {
		return nil, nil, fmt.Errorf("no enabled provider for planner role")
	}
	planner, err = NewModel(name, pCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("provider %s: %w", name, err)
	}

	exName, exCfg, ok := cfg.ProviderForRole("executor")
	if !ok || (exName == name && exCfg == pCfg) {
		return planner, planner, nil
	}
	executor, err = NewModel(exName, exCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("provider %s: %w", exName, err)
	}
	return planner, executor, nil
}
