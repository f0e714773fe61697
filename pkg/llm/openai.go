package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/synapse-dte/decision-engine/pkg/models"
	"github.com/synapse-dte/decision-engine/pkg/retry"
)

// OpenAIRecommender generates recommendations through an OpenAI-compatible
// chat completion endpoint.
type OpenAIRecommender struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

var _ Recommender = (*OpenAIRecommender)(nil)

// OpenAIConfig configures the OpenAI recommender. BaseURL is optional and
// enables OpenAI-compatible gateways.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIRecommender creates a new OpenAI-backed recommender.
func NewOpenAIRecommender(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIRecommender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIRecommender{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Recommend evaluates one subject. Transient provider failures are retried
// with backoff before the error is surfaced.
func (r *OpenAIRecommender) Recommend(ctx context.Context, req RecommendationRequest) (*models.Recommendation, error) {
	request := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		Temperature: 0.1,
	}

	resp, err := retry.DoWithResult(ctx, nil, func() (openai.ChatCompletionResponse, error) {
		return r.client.CreateChatCompletion(ctx, request)
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	rec, err := parseRecommendation("openai:"+r.model, resp.Choices[0].Message.Content)
	if err != nil {
		r.logger.Warn("unparseable recommendation response",
			zap.String("model", r.model),
			zap.Error(err))
		return nil, err
	}
	return rec, nil
}
