// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rule-harvester/internal/inference"
	"github.com/pdiddy/rule-harvester/internal/segment"
	"github.com/pdiddy/rule-harvester/pkg/types"
)

// --- mock extractors ---

type reply struct {
	outcome inference.Outcome
	err     error
}

// scriptedExtractor returns replies in order and records the paragraphs it
// was asked about. Once the script runs out it returns NoRuleFound.
type scriptedExtractor struct {
	mu          sync.Mutex
	replies     []reply
	paragraphs  []string
	credentials []string
}

func (s *scriptedExtractor) Extract(_ context.Context, paragraph, credential string) (inference.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paragraphs = append(s.paragraphs, paragraph)
	s.credentials = append(s.credentials, credential)
	if credential == "" {
		return inference.Outcome{}, inference.ErrMissingCredential
	}
	if len(s.replies) == 0 {
		return inference.NotFound(), nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.outcome, r.err
}

func (s *scriptedExtractor) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paragraphs)
}

// blockingExtractor holds every call until release is closed.
type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
	outcome inference.Outcome

	mu    sync.Mutex
	count int
}

func newBlockingExtractor(outcome inference.Outcome) *blockingExtractor {
	return &blockingExtractor{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
		outcome: outcome,
	}
}

func (b *blockingExtractor) Extract(ctx context.Context, _, _ string) (inference.Outcome, error) {
	b.mu.Lock()
	b.count++
	b.mu.Unlock()
	b.started <- struct{}{}
	select {
	case <-b.release:
		return b.outcome, nil
	case <-ctx.Done():
		return inference.Outcome{}, ctx.Err()
	}
}

func (b *blockingExtractor) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func found(id, title, desc string) reply {
	return reply{outcome: inference.Found(types.Rule{ID: id, Title: title, Description: desc})}
}

func notFound() reply {
	return reply{outcome: inference.NotFound()}
}

var withKey = CredentialFunc(func() string { return "test-key" })

// --- segmentation and initialisation ---

func TestExtractNextEmptyDocument(t *testing.T) {
	for _, doc := range []string{"", "   \n\n  "} {
		ext := &scriptedExtractor{}
		w := New(ext, withKey)
		w.Load(doc)

		_, err := w.ExtractNext(context.Background())
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Zero(t, ext.calls())
		assert.Equal(t, State{}, w.State())
		assert.False(t, w.Processing())
	}
}

func TestInitializeIfNeeded(t *testing.T) {
	w := New(&scriptedExtractor{}, withKey)
	w.Load("A\n\nB")

	require.NoError(t, w.InitializeIfNeeded())
	assert.Equal(t, []string{"A", "B"}, w.State().Paragraphs)
	assert.Equal(t, 0.0, w.Progress())
	assert.Equal(t, LabelNotStarted, w.Status())
}

func TestExtractNextSendsParagraphsInOrder(t *testing.T) {
	ext := &scriptedExtractor{}
	w := New(ext, withKey)
	w.Load("First.\n\nSecond.\n\n\nThird.")

	for i := 0; i < 3; i++ {
		_, err := w.ExtractNext(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"First.", "Second.", "Third."}, ext.paragraphs)
	assert.Equal(t, []string{"test-key", "test-key", "test-key"}, ext.credentials)
}

// --- core scenarios ---

func TestExtractNextRuleThenSentinel(t *testing.T) {
	ext := &scriptedExtractor{replies: []reply{
		found("r1", "Rule A", "Desc A"),
		notFound(),
	}}
	w := New(ext, withKey)
	w.Load("Para one.\n\nPara two.")

	step, err := w.ExtractNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, step.Index)
	assert.True(t, step.Outcome.HasRule())
	assert.InDelta(t, 50.0, step.Progress, 1e-9)
	assert.False(t, step.Done)
	assert.Equal(t, "50% complete", w.Status())

	step, err = w.ExtractNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, step.Index)
	assert.False(t, step.Outcome.HasRule())
	assert.True(t, step.Done)

	st := w.State()
	assert.Equal(t, []types.Rule{{ID: "r1", Title: "Rule A", Description: "Desc A"}}, st.Rules)
	assert.Equal(t, 2, st.Cursor)
	assert.Equal(t, 100.0, st.Progress)
	assert.Equal(t, LabelComplete, w.Status())
}

func TestSentinelAdvancesCursorWithoutRule(t *testing.T) {
	ext := &scriptedExtractor{replies: []reply{notFound(), notFound(), found("r", "T", "D")}}
	w := New(ext, withKey)
	w.Load("a\n\nb\n\nc")

	_, err := w.ExtractNext(context.Background())
	require.NoError(t, err)
	st := w.State()
	assert.Equal(t, 1, st.Cursor)
	assert.Empty(t, st.Rules)
	for _, r := range st.Rules {
		assert.NotEqual(t, types.SentinelTitle, r.Title)
	}
}

func TestExtractNextPastEnd(t *testing.T) {
	ext := &scriptedExtractor{replies: []reply{found("r1", "T", "D")}}
	w := New(ext, withKey)
	w.Load("Only paragraph.")

	_, err := w.ExtractNext(context.Background())
	require.NoError(t, err)
	before := w.State()

	_, err = w.ExtractNext(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyComplete)
	assert.Equal(t, before, w.State(), "no state change")
	assert.Equal(t, 1, ext.calls(), "no inference call")
}

func TestTriggersToExhaustEqualParagraphCount(t *testing.T) {
	docs := []string{
		"one",
		"one\n\ntwo",
		"a\n\n\nb\n \nc\n\n\n\nd\n\ne",
		"line\nline\n\nblock two\n\n   \n\nblock three",
	}
	for _, doc := range docs {
		t.Run(fmt.Sprintf("%d paragraphs", segment.Count(doc)), func(t *testing.T) {
			ext := &scriptedExtractor{}
			w := New(ext, withKey)
			w.Load(doc)

			successes := 0
			for {
				_, err := w.ExtractNext(context.Background())
				if errors.Is(err, ErrAlreadyComplete) {
					break
				}
				require.NoError(t, err)
				successes++
				require.LessOrEqual(t, successes, 100)
			}
			assert.Equal(t, len(segment.Split(doc)), successes)
			assert.Equal(t, 0, w.Remaining())
		})
	}
}

func TestRulesNeverExceedCursor(t *testing.T) {
	ext := &scriptedExtractor{replies: []reply{
		found("1", "A", "a"), notFound(), found("2", "B", "b"), notFound(),
	}}
	w := New(ext, withKey)
	w.Load("p1\n\np2\n\np3\n\np4")

	for i := 0; i < 4; i++ {
		_, err := w.ExtractNext(context.Background())
		require.NoError(t, err)
		st := w.State()
		assert.LessOrEqual(t, len(st.Rules), st.Cursor)
		assert.LessOrEqual(t, st.Cursor, len(st.Paragraphs))
	}
	assert.Len(t, w.Rules(), 2)
}

// --- failures ---

func TestExtractNextMissingCredential(t *testing.T) {
	ext := &scriptedExtractor{}
	w := New(ext, CredentialFunc(func() string { return "" }))
	w.Load("Para one.\n\nPara two.")

	_, err := w.ExtractNext(context.Background())
	assert.ErrorIs(t, err, inference.ErrMissingCredential)

	st := w.State()
	assert.Equal(t, 0, st.Cursor)
	assert.False(t, st.Processing)
	assert.Empty(t, st.Rules)
}

func TestExtractNextNilCredentialSource(t *testing.T) {
	ext := &scriptedExtractor{}
	w := New(ext, nil)
	w.Load("text")

	_, err := w.ExtractNext(context.Background())
	assert.ErrorIs(t, err, inference.ErrMissingCredential)
	assert.Equal(t, []string{""}, ext.credentials)
}

func TestExtractNextPicksUpCredentialChange(t *testing.T) {
	key := ""
	ext := &scriptedExtractor{replies: []reply{found("r", "T", "D")}}
	w := New(ext, CredentialFunc(func() string { return key }))
	w.Load("text")

	_, err := w.ExtractNext(context.Background())
	require.ErrorIs(t, err, inference.ErrMissingCredential)

	key = "now-set"
	_, err = w.ExtractNext(context.Background())
	require.NoError(t, err)
	assert.Len(t, w.Rules(), 1)
}

// A paragraph that keeps failing is retried on every trigger and blocks the
// paragraphs after it; there is no skip.
func TestPersistentFailureBlocksLaterParagraphs(t *testing.T) {
	transport := &inference.TransportError{StatusCode: 500, Err: errors.New("boom")}
	ext := &scriptedExtractor{replies: []reply{
		found("r1", "A", "a"),
		{err: transport},
		{err: transport},
		{err: &inference.ParseError{Content: "nope", Err: errors.New("bad json")}},
	}}
	w := New(ext, withKey)
	w.Load("p1\n\np2\n\np3")

	_, err := w.ExtractNext(context.Background())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		step, err := w.ExtractNext(context.Background())
		assert.ErrorIs(t, err, inference.ErrTransport)
		assert.Equal(t, 1, step.Index)
		assert.Equal(t, 1, w.State().Cursor)
		assert.False(t, w.Processing())
	}

	_, err = w.ExtractNext(context.Background())
	assert.ErrorIs(t, err, inference.ErrParse)
	assert.Equal(t, 1, w.State().Cursor)

	assert.Equal(t, []string{"p1", "p2", "p2", "p2"}, ext.paragraphs, "p3 never reached")
	assert.InDelta(t, 100.0/3, w.Progress(), 1e-9)
}

func TestFailureOnFirstParagraphKeepsSegmentation(t *testing.T) {
	ext := &scriptedExtractor{replies: []reply{{err: &inference.TransportError{Err: errors.New("down")}}}}
	w := New(ext, withKey)
	w.Load("p1\n\np2")

	_, err := w.ExtractNext(context.Background())
	require.Error(t, err)
	st := w.State()
	assert.Equal(t, []string{"p1", "p2"}, st.Paragraphs)
	assert.Equal(t, 0, st.Cursor)
	assert.Equal(t, 0.0, st.Progress)

	_, err = w.ExtractNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, w.State().Cursor)
}

// --- concurrency ---

func TestSecondTriggerWhileProcessingIsIgnored(t *testing.T) {
	ext := newBlockingExtractor(inference.Found(types.Rule{ID: "r1", Title: "T", Description: "D"}))
	w := New(ext, withKey)
	w.Load("p1\n\np2")

	var (
		wg    sync.WaitGroup
		first Step
		ferr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, ferr = w.ExtractNext(context.Background())
	}()

	select {
	case <-ext.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first extraction never started")
	}
	assert.True(t, w.Processing())
	before := w.State()

	_, err := w.ExtractNext(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, w.State(), "ignored trigger mutates nothing")

	close(ext.release)
	wg.Wait()

	require.NoError(t, ferr)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 1, ext.calls(), "no duplicate inference call")
	assert.Equal(t, 1, w.State().Cursor, "ignored trigger was not queued")
	assert.False(t, w.Processing())
}

func TestResetDuringExtractionDiscardsResult(t *testing.T) {
	ext := newBlockingExtractor(inference.Found(types.Rule{ID: "old", Title: "Old", Description: "old doc"}))
	w := New(ext, withKey)
	w.Load("old one\n\nold two")

	done := make(chan error, 1)
	go func() {
		_, err := w.ExtractNext(context.Background())
		done <- err
	}()
	<-ext.started

	w.Load("new document")
	close(ext.release)

	err := <-done
	assert.ErrorIs(t, err, ErrStale)

	st := w.State()
	assert.Empty(t, st.Rules, "no carry-over between documents")
	assert.Equal(t, 0, st.Cursor)
	assert.Nil(t, st.Paragraphs)
	assert.False(t, st.Processing)
	assert.Equal(t, "new document", w.Document())
}

func TestContextCancellationIsAnError(t *testing.T) {
	ext := newBlockingExtractor(inference.NotFound())
	w := New(ext, withKey)
	w.Load("p1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := w.ExtractNext(ctx)
		done <- err
	}()
	<-ext.started
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, w.State().Cursor)
	assert.False(t, w.Processing())
}

// --- reset, delete ---

func TestResetRestoresFreshState(t *testing.T) {
	ext := &scriptedExtractor{replies: []reply{found("r1", "A", "a"), found("r2", "B", "b")}}
	w := New(ext, withKey)
	w.Load("p1\n\np2\n\np3")
	for i := 0; i < 2; i++ {
		_, err := w.ExtractNext(context.Background())
		require.NoError(t, err)
	}

	w.Reset()

	assert.Equal(t, State{}, w.State())
	assert.Equal(t, LabelNotStarted, w.Status())
	assert.Equal(t, "p1\n\np2\n\np3", w.Document(), "reset keeps the text")
	assert.Equal(t, 3, w.Remaining())
}

func TestLoadResetsEverything(t *testing.T) {
	ext := &scriptedExtractor{replies: []reply{found("r1", "A", "a")}}
	w := New(ext, withKey)
	w.Load("p1\n\np2")
	_, err := w.ExtractNext(context.Background())
	require.NoError(t, err)

	w.Load("q1\n\nq2\n\nq3")

	assert.Equal(t, State{}, w.State())
	_, err = w.ExtractNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "q1", ext.paragraphs[len(ext.paragraphs)-1])
	assert.Len(t, w.State().Paragraphs, 3)
}

func TestDeleteRule(t *testing.T) {
	ext := &scriptedExtractor{replies: []reply{
		found("r1", "A", "a"), found("r2", "B", "b"), found("r3", "C", "c"),
	}}
	w := New(ext, withKey)
	w.Load("p1\n\np2\n\np3")
	for i := 0; i < 3; i++ {
		_, err := w.ExtractNext(context.Background())
		require.NoError(t, err)
	}
	snapshot := w.Rules()

	assert.False(t, w.DeleteRule("missing"))
	assert.Equal(t, snapshot, w.Rules(), "unknown id is a no-op")

	assert.True(t, w.DeleteRule("r2"))
	rules := w.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "r1", rules[0].ID)
	assert.Equal(t, "r3", rules[1].ID)

	st := w.State()
	assert.Equal(t, 3, st.Cursor, "cursor unaffected")
	assert.Equal(t, 100.0, st.Progress, "progress unaffected")

	assert.Equal(t, "r2", snapshot[1].ID, "earlier snapshots are not mutated")

	_, ok := w.Rule("r2")
	assert.False(t, ok)
	r, ok := w.Rule("r3")
	assert.True(t, ok)
	assert.Equal(t, "C", r.Title)
}

func TestRemainingBeforeAndDuringProcessing(t *testing.T) {
	w := New(&scriptedExtractor{}, withKey)
	assert.Equal(t, 0, w.Remaining())

	w.Load("a\n\nb\n\nc")
	assert.Equal(t, 3, w.Remaining())

	_, err := w.ExtractNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, w.Remaining())
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		progress float64
		want     string
	}{
		{0, "Not started"},
		{100.0 / 3, "33% complete"},
		{50, "50% complete"},
		{66.6666, "67% complete"},
		{99.6, "100% complete"},
		{100, "Processing complete"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusLabel(tt.progress), "progress %v", tt.progress)
	}
}

func TestIsNotice(t *testing.T) {
	for _, err := range []error{ErrEmptyInput, ErrAlreadyComplete, ErrBusy, ErrStale, ErrEmptyExport} {
		assert.True(t, IsNotice(err), err.Error())
		assert.True(t, IsNotice(fmt.Errorf("wrapped: %w", err)))
	}
	assert.False(t, IsNotice(inference.ErrMissingCredential))
	assert.False(t, IsNotice(&inference.TransportError{Err: errors.New("x")}))
}
