// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SentinelTitle is the title the model returns when a paragraph holds no
// extractable rule. Rules carrying it are never stored.
const SentinelTitle = "No rule found"

// Rule is a structured policy rule extracted from one paragraph.
type Rule struct {
	// ID is unique within a rule list. It is assigned locally, never by the model.
	ID string `json:"id" yaml:"id"`

	// Title is a short, clear title for the rule.
	Title string `json:"title" yaml:"title"`

	// Description explains the criteria that must be met to match the rule.
	Description string `json:"description" yaml:"description"`
}

// Exported returns the rule without its identifier.
func (r Rule) Exported() ExportedRule {
	return ExportedRule{Title: r.Title, Description: r.Description}
}

// ExportedRule is the identifier-free form written to export files.
type ExportedRule struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// ExportRules strips identifiers from rules, preserving order. The result is
// never nil so that an empty list encodes as [].
func ExportRules(rules []Rule) []ExportedRule {
	out := make([]ExportedRule, len(rules))
	for i, r := range rules {
		out[i] = r.Exported()
	}
	return out
}

// RuleSet is a named, archived list of rules in the local rule library.
type RuleSet struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
	RuleCount int    `json:"rule_count" yaml:"rule_count"`
}
