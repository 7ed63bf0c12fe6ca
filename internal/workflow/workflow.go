// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow drives one-paragraph-at-a-time rule extraction over a
// document and tracks the rules found and the progress made.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/rule-harvester/internal/inference"
	"github.com/pdiddy/rule-harvester/internal/segment"
	"github.com/pdiddy/rule-harvester/pkg/types"
)

// CredentialSource supplies the API key for each extraction. It is read on
// every trigger so a key saved mid-session is picked up.
type CredentialSource interface {
	Get() string
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func() string

// Get calls f.
func (f CredentialFunc) Get() string { return f() }

// State is a snapshot of the workflow. Slices are copies.
type State struct {
	Paragraphs []string
	Cursor     int
	Rules      []types.Rule
	Progress   float64
	Processing bool
}

// Step describes one completed trigger.
type Step struct {
	// Index is the zero-based paragraph the trigger processed.
	Index int

	// Outcome is what the extractor returned for that paragraph.
	Outcome inference.Outcome

	// Progress is the percentage after the step, in [0,100].
	Progress float64

	// Done reports whether every paragraph has now been processed.
	Done bool
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// Workflow owns the extraction state for one document. Its methods are safe
// for concurrent use; at most one extraction is in flight at a time.
type Workflow struct {
	extractor inference.Extractor
	creds     CredentialSource
	logger    *zap.Logger

	mu         sync.Mutex
	document   string
	paragraphs []string
	cursor     int
	rules      []types.Rule
	processing bool

	// generation increments on every reset so an in-flight result for an
	// earlier document is dropped.
	generation uint64
}

// New returns an empty workflow. creds may be nil, in which case every
// extraction runs without a credential.
func New(extractor inference.Extractor, creds CredentialSource, opts ...Option) *Workflow {
	w := &Workflow{
		extractor: extractor,
		creds:     creds,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Load replaces the document text and resets all progress.
func (w *Workflow) Load(document string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.document = document
	w.resetLocked()
	w.logger.Info("document loaded", zap.Int("bytes", len(document)))
}

// Document returns the current document text.
func (w *Workflow) Document() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.document
}

// Reset clears paragraphs, cursor, rules and progress. The document text is
// kept.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Workflow) resetLocked() {
	w.paragraphs = nil
	w.cursor = 0
	w.rules = nil
	w.generation++
}

// InitializeIfNeeded segments the document when nothing has been processed
// yet. It returns ErrEmptyInput when the document has no paragraphs.
func (w *Workflow) InitializeIfNeeded() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.initializeLocked()
}

func (w *Workflow) initializeLocked() error {
	if w.cursor != 0 || w.paragraphs != nil {
		return nil
	}
	paragraphs := segment.Split(w.document)
	if len(paragraphs) == 0 {
		return ErrEmptyInput
	}
	w.paragraphs = paragraphs
	w.logger.Info("document segmented", zap.Int("paragraphs", len(paragraphs)))
	return nil
}

// ExtractNext processes the paragraph at the cursor. A rule is appended when
// one is found; the cursor advances whether or not a rule was found. On an
// extractor error the cursor stays put, so the same paragraph is retried on
// the next trigger and later paragraphs wait behind it.
func (w *Workflow) ExtractNext(ctx context.Context) (Step, error) {
	w.mu.Lock()
	if w.processing {
		w.mu.Unlock()
		return Step{}, ErrBusy
	}
	if err := w.initializeLocked(); err != nil {
		w.mu.Unlock()
		return Step{}, err
	}
	if w.cursor >= len(w.paragraphs) {
		w.mu.Unlock()
		return Step{}, ErrAlreadyComplete
	}
	w.processing = true
	gen := w.generation
	index := w.cursor
	paragraph := w.paragraphs[index]
	w.mu.Unlock()

	outcome, err := w.extractor.Extract(ctx, paragraph, w.credential())

	w.mu.Lock()
	defer w.mu.Unlock()
	w.processing = false

	if gen != w.generation {
		w.logger.Info("discarding result for replaced document", zap.Int("paragraph", index+1))
		return Step{}, ErrStale
	}

	if err != nil {
		w.logger.Warn("extraction failed",
			zap.Int("paragraph", index+1),
			zap.Int("paragraphs", len(w.paragraphs)),
			zap.Error(err))
		return Step{Index: index, Progress: w.progressLocked()},
			fmt.Errorf("extracting paragraph %d of %d: %w", index+1, len(w.paragraphs), err)
	}

	if outcome.HasRule() {
		w.rules = append(w.rules, outcome.Rule)
	}
	w.cursor++

	w.logger.Info("paragraph processed",
		zap.Int("paragraph", index+1),
		zap.Stringer("outcome", outcome.Kind),
		zap.Int("rules", len(w.rules)))

	return Step{
		Index:    index,
		Outcome:  outcome,
		Progress: w.progressLocked(),
		Done:     w.cursor == len(w.paragraphs),
	}, nil
}

func (w *Workflow) credential() string {
	if w.creds == nil {
		return ""
	}
	return w.creds.Get()
}

// DeleteRule removes the rule with id. It reports whether a rule was removed.
// Cursor and progress are not affected.
func (w *Workflow) DeleteRule(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range w.rules {
		if r.ID == id {
			w.rules = append(w.rules[:i:i], w.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns a copy of the accumulated rules in extraction order.
func (w *Workflow) Rules() []types.Rule {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]types.Rule(nil), w.rules...)
}

// Rule looks up a rule by id.
func (w *Workflow) Rule(id string) (types.Rule, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.rules {
		if r.ID == id {
			return r, true
		}
	}
	return types.Rule{}, false
}

// State returns a snapshot of the workflow.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Paragraphs: append([]string(nil), w.paragraphs...),
		Cursor:     w.cursor,
		Rules:      append([]types.Rule(nil), w.rules...),
		Progress:   w.progressLocked(),
		Processing: w.processing,
	}
}

// Processing reports whether an extraction is in flight.
func (w *Workflow) Processing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processing
}

// Progress returns cursor/len(paragraphs)*100, or 0 before segmentation.
func (w *Workflow) Progress() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.progressLocked()
}

func (w *Workflow) progressLocked() float64 {
	if len(w.paragraphs) == 0 {
		return 0
	}
	return float64(w.cursor) / float64(len(w.paragraphs)) * 100
}

// Status returns the progress label for the current state.
func (w *Workflow) Status() string {
	return StatusLabel(w.Progress())
}

// Remaining returns how many paragraphs are still to be processed. Before the
// first trigger it counts the paragraphs of the loaded document.
func (w *Workflow) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.paragraphs == nil {
		return segment.Count(w.document)
	}
	return len(w.paragraphs) - w.cursor
}
