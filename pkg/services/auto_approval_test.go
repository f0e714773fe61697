package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synapse-dte/decision-engine/pkg/models"
)

func TestEvaluateAutoApproval(t *testing.T) {
	scoping := models.PhaseScoping
	rec := func(confidence, risk float64) *models.Recommendation {
		return &models.Recommendation{Source: "llm", Decision: "include", Confidence: confidence, RiskScore: risk}
	}

	tests := []struct {
		name   string
		rec    *models.Recommendation
		traits models.SubjectTraits
		rules  []*models.ApprovalRule
		want   bool
	}{
		{
			name: "no recommendation never approves",
			rec:  nil,
			want: false,
		},
		{
			name: "no rules falls back to default threshold",
			rec:  rec(90, 0),
			want: true,
		},
		{
			name: "no rules below default threshold",
			rec:  rec(84.9, 0),
			want: false,
		},
		{
			name:   "confidence gate fails",
			rec:    rec(80, 0),
			traits: models.SubjectTraits{HasDataSource: true},
			rules: []*models.ApprovalRule{
				{Name: "strict", MinConfidence: 90, IsActive: true},
			},
			want: false,
		},
		{
			name:   "missing data source fails the gate",
			rec:    rec(95, 0),
			traits: models.SubjectTraits{HasDataSource: false},
			rules: []*models.ApprovalRule{
				{Name: "needs-source", MinConfidence: 90, RequireDataSource: true, IsActive: true},
			},
			want: false,
		},
		{
			name:   "missing business metadata fails the gate",
			rec:    rec(95, 0),
			traits: models.SubjectTraits{HasDataSource: true},
			rules: []*models.ApprovalRule{
				{Name: "needs-meta", MinConfidence: 90, RequireBusinessMetadata: true, IsActive: true},
			},
			want: false,
		},
		{
			name:   "cde shortcut skips the risk ceiling",
			rec:    rec(95, 99),
			traits: models.SubjectTraits{IsCriticalDataElement: true},
			rules: []*models.ApprovalRule{
				{Name: "cde", MinConfidence: 90, AutoApproveCDE: true, MaxRiskScore: 10, IsActive: true},
			},
			want: true,
		},
		{
			name:   "primary key shortcut",
			rec:    rec(95, 0),
			traits: models.SubjectTraits{IsPrimaryKey: true},
			rules: []*models.ApprovalRule{
				{Name: "pk", MinConfidence: 90, AutoApprovePK: true, IsActive: true},
			},
			want: true,
		},
		{
			name:   "public classification shortcut",
			rec:    rec(95, 0),
			traits: models.SubjectTraits{IsPublicClassification: true},
			rules: []*models.ApprovalRule{
				{Name: "public", MinConfidence: 90, AutoApprovePublic: true, IsActive: true},
			},
			want: true,
		},
		{
			name: "risk ceiling disqualifies the rule",
			rec:  rec(95, 60),
			rules: []*models.ApprovalRule{
				{Name: "capped", MinConfidence: 90, MaxRiskScore: 50, IsActive: true},
			},
			want: false,
		},
		{
			name: "zero risk ceiling means no ceiling",
			rec:  rec(95, 99),
			rules: []*models.ApprovalRule{
				{Name: "uncapped", MinConfidence: 90, IsActive: true},
			},
			want: true,
		},
		{
			name: "inactive rules are skipped",
			rec:  rec(95, 0),
			rules: []*models.ApprovalRule{
				{Name: "off", MinConfidence: 50, IsActive: false},
			},
			want: false,
		},
		{
			name:   "later rule matches after earlier gate fails",
			rec:    rec(95, 0),
			traits: models.SubjectTraits{HasDataSource: false},
			rules: []*models.ApprovalRule{
				{Name: "strict", Priority: 1, MinConfidence: 90, RequireDataSource: true, IsActive: true},
				{Name: "lenient", Priority: 2, MinConfidence: 90, IsActive: true},
			},
			want: true,
		},
		{
			name: "rules evaluated in priority order regardless of slice order",
			rec:  rec(95, 60),
			rules: []*models.ApprovalRule{
				{Name: "second", Priority: 2, MinConfidence: 90, IsActive: true},
				{Name: "first", Priority: 1, MinConfidence: 90, MaxRiskScore: 50, IsActive: true},
			},
			// first rule is disqualified by risk, second approves.
			want: true,
		},
		{
			name:   "phase scoped rule present",
			rec:    rec(95, 0),
			traits: models.SubjectTraits{HasDataSource: true},
			rules: []*models.ApprovalRule{
				{Name: "scoping-only", Phase: &scoping, MinConfidence: 90, IsActive: true},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateAutoApproval(tt.rec, tt.traits, tt.rules))
		})
	}
}
