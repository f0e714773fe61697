package llm

import (
	"context"
	"sync"

	"github.com/synapse-dte/decision-engine/pkg/models"
)

// MockRecommender is a scripted Recommender for tests.
type MockRecommender struct {
	mu sync.Mutex

	// Response is returned for every request when Fn is nil.
	Response *models.Recommendation
	// Err is returned alongside whatever Response holds.
	Err error
	// Fn overrides the scripted response when set.
	Fn func(req RecommendationRequest) (*models.Recommendation, error)

	// Requests records every request received, in order.
	Requests []RecommendationRequest
}

var _ Recommender = (*MockRecommender)(nil)

func (m *MockRecommender) Recommend(_ context.Context, req RecommendationRequest) (*models.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Fn != nil {
		return m.Fn(req)
	}
	return m.Response, m.Err
}
