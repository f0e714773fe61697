package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/synapse-dte/decision-engine/pkg/config"
)

// NewRecommender creates the configured recommendation provider. Returns
// ErrNoProvider when recommendations are disabled, so callers can degrade to
// manual review instead of failing startup.
func NewRecommender(cfg config.LLMConfig, logger *zap.Logger) (Recommender, error) {
	switch cfg.Provider {
	case "":
		return nil, ErrNoProvider
	case "openai":
		return NewOpenAIRecommender(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, logger)
	case "anthropic":
		return NewAnthropicRecommender(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
