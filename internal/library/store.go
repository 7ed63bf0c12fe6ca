// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library archives rule lists in a local SQLite database and builds
// a full-text index over their titles and descriptions.
package library

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/rule-harvester/pkg/types"
)

const (
	dbFile         = "library.db"
	exportPrefix   = "rules-export-"
	defaultResults = 20
)

// ErrSetNotFound is returned when a rule set id does not exist.
var ErrSetNotFound = errors.New("rule set not found")

// Store manages the rule library SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
	logger     *zap.Logger
	now        func() time.Time
}

// NewStore opens or creates the library database at dir/library.db. It
// creates the schema if it does not exist.
func NewStore(cfg types.LibraryConfig, logger *zap.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("library directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		db:         db,
		dir:        cfg.Dir,
		maxResults: maxResults,
		logger:     logger,
		now:        time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rule_sets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			source TEXT,
			created_at TEXT NOT NULL,
			rule_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			set_id INTEGER NOT NULL REFERENCES rule_sets(id),
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_set_id ON rules(set_id, position)`,
		`CREATE TABLE IF NOT EXISTS import_status (
			path TEXT PRIMARY KEY,
			file_mod_time TEXT,
			set_id INTEGER
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS4 index kept in sync by triggers; docid mirrors rules.rowid.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='rules_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE rules_fts USING fts4(title, description)`,
			`CREATE TRIGGER rules_ai AFTER INSERT ON rules BEGIN
				INSERT INTO rules_fts(docid, title, description) VALUES (new.rowid, new.title, new.description);
			END`,
			`CREATE TRIGGER rules_ad AFTER DELETE ON rules BEGIN
				DELETE FROM rules_fts WHERE docid = old.rowid;
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SaveSet archives rules as a new rule set. Rules keep their order; a rule
// without an id gets a fresh one.
func (s *Store) SaveSet(ctx context.Context, name, source string, rules []types.Rule) (types.RuleSet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.RuleSet{}, errors.New("rule set name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	set, err := s.insertSet(ctx, tx, name, source, rules)
	if err != nil {
		return types.RuleSet{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.RuleSet{}, fmt.Errorf("committing rule set: %w", err)
	}

	s.logger.Info("rule set saved",
		zap.Int64("set", set.ID), zap.String("name", set.Name), zap.Int("rules", set.RuleCount))
	return set, nil
}

func (s *Store) insertSet(ctx context.Context, tx *sql.Tx, name, source string, rules []types.Rule) (types.RuleSet, error) {
	set := types.RuleSet{
		Name:      name,
		Source:    source,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		RuleCount: len(rules),
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO rule_sets (name, source, created_at, rule_count) VALUES (?, ?, ?, ?)`,
		set.Name, set.Source, set.CreatedAt, set.RuleCount,
	)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("inserting rule set: %w", err)
	}
	if set.ID, err = res.LastInsertId(); err != nil {
		return types.RuleSet{}, fmt.Errorf("reading rule set id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rules (id, set_id, position, title, description) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rules {
		// Ids are only unique within one list; the library needs them global.
		id := r.ID
		taken := false
		if id != "" {
			if taken, err = ruleExists(ctx, tx, id); err != nil {
				return types.RuleSet{}, fmt.Errorf("checking rule %d: %w", i+1, err)
			}
		}
		if id == "" || taken {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, set.ID, i, r.Title, r.Description); err != nil {
			return types.RuleSet{}, fmt.Errorf("inserting rule %d: %w", i+1, err)
		}
	}

	return set, nil
}

func ruleExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM rules WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReadExport parses an export artifact: a JSON array of {title, description}.
// Entries with an empty title or the no-rule sentinel are dropped.
func ReadExport(r io.Reader) ([]types.Rule, error) {
	var entries []types.ExportedRule
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing export: %w", err)
	}

	rules := make([]types.Rule, 0, len(entries))
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" || title == types.SentinelTitle {
			continue
		}
		rules = append(rules, types.Rule{
			ID:          uuid.NewString(),
			Title:       title,
			Description: strings.TrimSpace(e.Description),
		})
	}
	return rules, nil
}

// ImportFile archives the export artifact at path as a new rule set. An
// empty name defaults to the file name without its extension.
func (s *Store) ImportFile(ctx context.Context, path, name string) (types.RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rules, err := ReadExport(f)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}

	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s.SaveSet(ctx, name, path, rules)
}

// ImportSummary holds counts from a directory import run.
type ImportSummary struct {
	Imported int
	Updated  int
	Skipped  int
	Failed   int
}

// Total returns the number of files processed.
func (s ImportSummary) Total() int {
	return s.Imported + s.Updated + s.Skipped + s.Failed
}

// ImportDir archives every rules-export-*.json file in dir. A file whose
// modification time is unchanged since its last import is skipped; a
// changed file replaces the set it produced before.
func (s *Store) ImportDir(ctx context.Context, dir string, w io.Writer) (ImportSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("reading import directory %s: %w", dir, err)
	}

	var summary ImportSummary

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, exportPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		path := filepath.Join(dir, name)
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var (
			storedModTime string
			previousSet   sql.NullInt64
		)
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time, set_id FROM import_status WHERE path = ?`, path,
		).Scan(&storedModTime, &previousSet)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			fmt.Fprintf(w, "failed   %s: reading import status: %v\n", name, err)
			summary.Failed++
			continue
		}

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped  %s\n", name)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		set, err := s.importTracked(ctx, path, modTime, previousSet)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated  %s (%d rules)\n", name, set.RuleCount)
			summary.Updated++
		} else {
			fmt.Fprintf(w, "imported %s (%d rules)\n", name, set.RuleCount)
			summary.Imported++
		}
	}

	fmt.Fprintf(w, "\nimported: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Imported, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

func (s *Store) importTracked(ctx context.Context, path, modTime string, previousSet sql.NullInt64) (types.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RuleSet{}, err
	}
	rules, err := ReadExport(bytes.NewReader(data))
	if err != nil {
		return types.RuleSet{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if previousSet.Valid {
		if err := deleteSet(ctx, tx, previousSet.Int64); err != nil && !errors.Is(err, ErrSetNotFound) {
			return types.RuleSet{}, err
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	set, err := s.insertSet(ctx, tx, name, path, rules)
	if err != nil {
		return types.RuleSet{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO import_status (path, file_mod_time, set_id) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET file_mod_time=excluded.file_mod_time, set_id=excluded.set_id`,
		path, modTime, set.ID,
	)
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("updating import status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.RuleSet{}, fmt.Errorf("committing import: %w", err)
	}
	s.logger.Info("export imported", zap.String("path", path), zap.Int64("set", set.ID), zap.Int("rules", set.RuleCount))
	return set, nil
}

// Sets lists every rule set, newest first.
func (s *Store) Sets(ctx context.Context) ([]types.RuleSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, source, created_at, rule_count FROM rule_sets ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing rule sets: %w", err)
	}
	defer rows.Close()

	var sets []types.RuleSet
	for rows.Next() {
		var (
			set    types.RuleSet
			source sql.NullString
		)
		if err := rows.Scan(&set.ID, &set.Name, &source, &set.CreatedAt, &set.RuleCount); err != nil {
			return nil, fmt.Errorf("scanning rule set: %w", err)
		}
		set.Source = source.String
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// Set looks up one rule set.
func (s *Store) Set(ctx context.Context, id int64) (types.RuleSet, error) {
	var (
		set    types.RuleSet
		source sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, source, created_at, rule_count FROM rule_sets WHERE id = ?`, id,
	).Scan(&set.ID, &set.Name, &source, &set.CreatedAt, &set.RuleCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.RuleSet{}, fmt.Errorf("rule set %d: %w", id, ErrSetNotFound)
		}
		return types.RuleSet{}, fmt.Errorf("looking up rule set: %w", err)
	}
	set.Source = source.String
	return set, nil
}

// DeleteSet removes a rule set and its rules.
func (s *Store) DeleteSet(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteSet(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM import_status WHERE set_id = ?`, id); err != nil {
		return fmt.Errorf("clearing import status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	s.logger.Info("rule set deleted", zap.Int64("set", id))
	return nil
}

func deleteSet(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE set_id = ?`, id); err != nil {
		return fmt.Errorf("deleting rules: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM rule_sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting rule set: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule set %d: %w", id, ErrSetNotFound)
	}
	return nil
}
