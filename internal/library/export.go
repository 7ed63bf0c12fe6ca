// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"fmt"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

// SetDocument is the YAML form of an archived rule set.
type SetDocument struct {
	types.RuleSet `yaml:",inline"`
	Rules         []types.ExportedRule `yaml:"rules"`
}

// ExportSet returns the rules of a set in export order, identifiers intact.
// Callers encode them as the JSON export artifact.
func (s *Store) ExportSet(ctx context.Context, id int64) (types.RuleSet, []types.Rule, error) {
	set, err := s.Set(ctx, id)
	if err != nil {
		return types.RuleSet{}, nil, err
	}
	rules, err := s.Rules(ctx, id)
	if err != nil {
		return types.RuleSet{}, nil, fmt.Errorf("querying for export: %w", err)
	}
	return set, rules, nil
}

// ExportYAML renders a set with its metadata as YAML.
func (s *Store) ExportYAML(ctx context.Context, id int64) ([]byte, error) {
	set, rules, err := s.ExportSet(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(SetDocument{RuleSet: set, Rules: types.ExportRules(rules)})
	if err != nil {
		return nil, fmt.Errorf("marshaling YAML: %w", err)
	}
	return data, nil
}
