// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inference turns one paragraph of a policy document into a rule by
// calling a chat completions model. The model's sentinel reply is converted to
// a NoRuleFound outcome here and nowhere else.
package inference

import (
	"context"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

// Extractor abstracts the model call so the workflow and tests can supply
// their own implementation.
type Extractor interface {
	// Extract returns the outcome for one paragraph. An empty credential fails
	// with ErrMissingCredential before any request is made.
	Extract(ctx context.Context, paragraph, credential string) (Outcome, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, paragraph, credential string) (Outcome, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, paragraph, credential string) (Outcome, error) {
	return f(ctx, paragraph, credential)
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	// NoRuleFound means the paragraph holds no extractable rule.
	NoRuleFound OutcomeKind = iota
	// RuleFound means Outcome.Rule carries a parsed rule.
	RuleFound
)

func (k OutcomeKind) String() string {
	switch k {
	case RuleFound:
		return "rule-found"
	default:
		return "no-rule-found"
	}
}

// Outcome is the result of a successful extraction.
type Outcome struct {
	Kind OutcomeKind

	// Rule is set only when Kind is RuleFound.
	Rule types.Rule
}

// Found wraps a parsed rule.
func Found(rule types.Rule) Outcome {
	return Outcome{Kind: RuleFound, Rule: rule}
}

// NotFound is the outcome for a paragraph without a rule.
func NotFound() Outcome {
	return Outcome{Kind: NoRuleFound}
}

// HasRule reports whether the outcome carries a rule.
func (o Outcome) HasRule() bool {
	return o.Kind == RuleFound
}
