package llm

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/synapse-dte/decision-engine/pkg/models"
	"github.com/synapse-dte/decision-engine/pkg/retry"
)

// AnthropicRecommender generates recommendations through the Anthropic
// Messages API.
type AnthropicRecommender struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

var _ Recommender = (*AnthropicRecommender)(nil)

// AnthropicConfig configures the Anthropic recommender.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewAnthropicRecommender creates a new Anthropic-backed recommender.
func NewAnthropicRecommender(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicRecommender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model is required")
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicRecommender{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Recommend evaluates one subject. Transient provider failures are retried
// with backoff before the error is surfaced.
func (r *AnthropicRecommender) Recommend(ctx context.Context, req RecommendationRequest) (*models.Recommendation, error) {
	request := anthropic.MessagesRequest{
		Model:     anthropic.Model(r.model),
		System:    systemPrompt,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(buildPrompt(req)),
		},
	}

	resp, err := retry.DoWithResult(ctx, nil, func() (anthropic.MessagesResponse, error) {
		return r.client.CreateMessages(ctx, request)
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	text := resp.GetFirstContentText()
	if text == "" {
		return nil, errors.New("anthropic returned no text content")
	}

	rec, err := parseRecommendation("anthropic:"+r.model, text)
	if err != nil {
		r.logger.Warn("unparseable recommendation response",
			zap.String("model", r.model),
			zap.Error(err))
		return nil, err
	}
	return rec, nil
}
