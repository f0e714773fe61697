package services

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
	"github.com/synapse-dte/decision-engine/pkg/models"
	"github.com/synapse-dte/decision-engine/pkg/repositories"
)

// ruleSpec mirrors ApprovalRule for parsing. IsActive is a pointer so an
// omitted key defaults to active rather than to false.
type ruleSpec struct {
	Name                    string            `yaml:"name"`
	Priority                int               `yaml:"priority"`
	Phase                   *models.PhaseKind `yaml:"phase,omitempty"`
	MinConfidence           float64           `yaml:"min_confidence"`
	RequireDataSource       bool              `yaml:"require_data_source"`
	RequireBusinessMetadata bool              `yaml:"require_business_metadata"`
	AutoApproveCDE          bool              `yaml:"auto_approve_cde"`
	AutoApprovePK           bool              `yaml:"auto_approve_pk"`
	AutoApprovePublic       bool              `yaml:"auto_approve_public"`
	MaxRiskScore            float64           `yaml:"max_risk_score"`
	IsActive                *bool             `yaml:"is_active,omitempty"`
}

type rulesFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

// LoadRulesFromFile parses an approval-rule bootstrap file. Loaded rules are
// active by default; a rule must opt out explicitly via `is_active: false`.
func LoadRulesFromFile(path string) ([]*models.ApprovalRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var file rulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	// Catches typos in rule condition names instead of silently dropping them.
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	rules := make([]*models.ApprovalRule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		if spec.Name == "" {
			return nil, fmt.Errorf("rule %d has no name: %w", i, apperrors.ErrValidation)
		}
		if spec.Phase != nil && !models.IsValidPhaseKind(*spec.Phase) {
			return nil, fmt.Errorf("rule %q references unknown phase %q: %w", spec.Name, *spec.Phase, apperrors.ErrValidation)
		}
		if spec.MinConfidence < 0 || spec.MinConfidence > 100 {
			return nil, fmt.Errorf("rule %q min_confidence must be within 0-100: %w", spec.Name, apperrors.ErrValidation)
		}

		active := true
		if spec.IsActive != nil {
			active = *spec.IsActive
		}
		rules = append(rules, &models.ApprovalRule{
			Name:                    spec.Name,
			Priority:                spec.Priority,
			Phase:                   spec.Phase,
			MinConfidence:           spec.MinConfidence,
			RequireDataSource:       spec.RequireDataSource,
			RequireBusinessMetadata: spec.RequireBusinessMetadata,
			AutoApproveCDE:          spec.AutoApproveCDE,
			AutoApprovePK:           spec.AutoApprovePK,
			AutoApprovePublic:       spec.AutoApprovePublic,
			MaxRiskScore:            spec.MaxRiskScore,
			IsActive:                active,
		})
	}

	return rules, nil
}

// BootstrapRules loads rules from a file and persists any that are not
// already present, matching by name. Safe to run on every startup.
func BootstrapRules(ctx context.Context, logger *zap.Logger, path string, repo repositories.ApprovalRuleRepository) error {
	rules, err := LoadRulesFromFile(path)
	if err != nil {
		return err
	}

	existing := make(map[string]bool)
	for _, kind := range models.ValidPhaseKinds {
		if !kind.OwnsVersions() {
			continue
		}
		stored, err := repo.ListForPhase(ctx, kind)
		if err != nil {
			return err
		}
		for _, r := range stored {
			existing[r.Name] = true
		}
	}

	var created int
	for _, rule := range rules {
		if existing[rule.Name] {
			continue
		}
		if err := repo.Create(ctx, rule); err != nil {
			return err
		}
		existing[rule.Name] = true
		created++
	}

	logger.Info("approval rules bootstrapped",
		zap.String("path", path),
		zap.Int("loaded", len(rules)),
		zap.Int("created", created))
	return nil
}
