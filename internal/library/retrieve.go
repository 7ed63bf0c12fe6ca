// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

// QueryOptions holds parameters for library searches.
type QueryOptions struct {
	// Query is the FTS4 full-text search string.
	Query string

	// SetID restricts results to one rule set. Zero searches all sets.
	SetID int64

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return strings.TrimSpace(q.Query) == "" && q.SetID == 0
}

// Result is an archived rule with the set it belongs to.
type Result struct {
	types.Rule
	SetID   int64  `json:"set_id" yaml:"set_id"`
	SetName string `json:"set_name" yaml:"set_name"`
}

// Search queries the library with optional full-text search and a set
// filter. Results follow set order then rule order.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]Result, error) {
	if opts.IsEmpty() {
		return nil, fmt.Errorf("search needs a query or a rule set")
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = strings.TrimSpace(opts.Query) != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT r.id, r.title, r.description, r.set_id, s.name
			FROM rules_fts
			JOIN rules r ON r.rowid = rules_fts.docid
			JOIN rule_sets s ON s.id = r.set_id
			WHERE rules_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT r.id, r.title, r.description, r.set_id, s.name
			FROM rules r
			JOIN rule_sets s ON s.id = r.set_id
			WHERE 1=1`)
	}

	if opts.SetID != 0 {
		qb.WriteString(` AND r.set_id = ?`)
		args = append(args, opts.SetID)
	}

	qb.WriteString(` ORDER BY r.set_id, r.position LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching library: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.SetID, &r.SetName); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// Rules returns every rule of a set in its original order.
func (s *Store) Rules(ctx context.Context, setID int64) ([]types.Rule, error) {
	if _, err := s.Set(ctx, setID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description FROM rules WHERE set_id = ? ORDER BY position`, setID)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	rules := []types.Rule{}
	for rows.Next() {
		var r types.Rule
		if err := rows.Scan(&r.ID, &r.Title, &r.Description); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
