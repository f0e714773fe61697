package services

import (
	"sort"

	"github.com/synapse-dte/decision-engine/pkg/models"
)

// EvaluateAutoApproval decides whether an item's recommendation is strong
// enough to skip manual owner review. Rules run in ascending priority order;
// the first rule whose conditions all hold grants approval. With no rules
// configured, a bare confidence threshold applies.
//
// Evaluation of a single rule:
//  1. Gates: confidence below the rule's minimum, or a required trait
//     (data source, business metadata) missing, disqualifies the rule.
//  2. Shortcuts: if the rule auto-approves an attribute class (CDE, primary
//     key, public classification) and the item has that trait, approve
//     immediately without consulting the risk ceiling.
//  3. Risk ceiling: a risk score above the rule's maximum (when set)
//     disqualifies the rule.
//
// An item with no recommendation is never auto-approved.
func EvaluateAutoApproval(rec *models.Recommendation, traits models.SubjectTraits, rules []*models.ApprovalRule) bool {
	if rec == nil {
		return false
	}

	if len(rules) == 0 {
		return rec.Confidence >= models.DefaultAutoApprovalConfidence
	}

	ordered := make([]*models.ApprovalRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for _, rule := range ordered {
		if !rule.IsActive {
			continue
		}
		if rec.Confidence < rule.MinConfidence {
			continue
		}
		if rule.RequireDataSource && !traits.HasDataSource {
			continue
		}
		if rule.RequireBusinessMetadata && !traits.HasBusinessMetadata {
			continue
		}

		if rule.AutoApproveCDE && traits.IsCriticalDataElement {
			return true
		}
		if rule.AutoApprovePK && traits.IsPrimaryKey {
			return true
		}
		if rule.AutoApprovePublic && traits.IsPublicClassification {
			return true
		}

		if rule.MaxRiskScore > 0 && rec.RiskScore > rule.MaxRiskScore {
			continue
		}

		return true
	}

	return false
}
