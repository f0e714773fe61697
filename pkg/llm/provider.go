// Package llm generates decision recommendations for review items using an
// LLM provider. Recommendations are advisory: they feed the auto-approval
// rules and the reviewer's screen, never a state transition directly.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/synapse-dte/decision-engine/pkg/models"
)

// ErrNoProvider indicates recommendation generation is not configured.
var ErrNoProvider = errors.New("no llm provider configured")

// RecommendationRequest describes one subject to evaluate.
type RecommendationRequest struct {
	Phase       models.PhaseKind
	SubjectKind models.SubjectKind
	SubjectName string
	Description string
	Traits      models.SubjectTraits
}

// Recommender produces a decision recommendation for a subject.
// Implementations must be safe for concurrent use.
type Recommender interface {
	Recommend(ctx context.Context, req RecommendationRequest) (*models.Recommendation, error)
}

const systemPrompt = `You are assisting a regulatory testing workflow. Given a subject under
review, recommend whether to include it and estimate its risk. Respond with
only a JSON object of the form:
{"decision": "include" | "exclude", "confidence": 0-100, "rationale": "...", "risk_score": 0-100}`

func buildPrompt(req RecommendationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s\nSubject kind: %s\nSubject: %s\n", req.Phase, req.SubjectKind, req.SubjectName)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	fmt.Fprintf(&b, "Critical data element: %t\nPrimary key: %t\nPublic classification: %t\nHas data source: %t\nHas business metadata: %t\n",
		req.Traits.IsCriticalDataElement,
		req.Traits.IsPrimaryKey,
		req.Traits.IsPublicClassification,
		req.Traits.HasDataSource,
		req.Traits.HasBusinessMetadata,
	)
	return b.String()
}

type recommendationPayload struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	RiskScore  float64 `json:"risk_score"`
}

// parseRecommendation decodes a provider response into a recommendation.
// Markdown code fences around the JSON are tolerated; models add them
// despite instructions.
func parseRecommendation(source, raw string) (*models.Recommendation, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload recommendationPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse recommendation response: %w", err)
	}
	if payload.Decision == "" {
		return nil, errors.New("recommendation response missing decision")
	}
	if payload.Confidence < 0 || payload.Confidence > 100 {
		return nil, fmt.Errorf("recommendation confidence %v out of range", payload.Confidence)
	}

	return &models.Recommendation{
		Source:     source,
		Decision:   payload.Decision,
		Confidence: payload.Confidence,
		Rationale:  payload.Rationale,
		RiskScore:  payload.RiskScore,
	}, nil
}
