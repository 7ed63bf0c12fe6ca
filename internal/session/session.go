// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session runs the interactive extraction loop: the user loads a
// document, steps through its paragraphs, reviews the rules found, and
// exports or archives them.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/rule-harvester/internal/secrets"
	"github.com/pdiddy/rule-harvester/internal/watch"
	"github.com/pdiddy/rule-harvester/internal/workflow"
	"github.com/pdiddy/rule-harvester/pkg/types"
)

const prompt = "rules> "

// Archive stores a finished rule list under a name.
type Archive interface {
	SaveSet(ctx context.Context, name, source string, rules []types.Rule) (types.RuleSet, error)
}

// Config wires a session to its collaborators.
type Config struct {
	Workflow  *workflow.Workflow
	Keys      secrets.Resolver
	Archive   Archive
	ExportDir string

	// DocumentPath is the file the document was loaded from, if any.
	DocumentPath string

	// Watcher, when set, reloads the document on every change.
	Watcher *watch.FileWatcher

	In     io.Reader
	Out    io.Writer
	Logger *zap.Logger
	Now    func() time.Time
}

// Session is one interactive run.
type Session struct {
	wf        *workflow.Workflow
	keys      secrets.Resolver
	archive   Archive
	exportDir string
	watcher   *watch.FileWatcher
	logger    *zap.Logger
	now       func() time.Time

	in  *bufio.Scanner
	out *printer

	docPath string
}

// New returns a session. Nil streams default to stdin and stdout.
func New(cfg Config) *Session {
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &Session{
		wf:        cfg.Workflow,
		keys:      cfg.Keys,
		archive:   cfg.Archive,
		exportDir: cfg.ExportDir,
		watcher:   cfg.Watcher,
		logger:    logger,
		now:       now,
		in:        sc,
		out:       newPrinter(out),
		docPath:   cfg.DocumentPath,
	}
}

// Run reads commands until quit or end of input. With a watcher configured
// the document is reloaded in the background whenever the file changes.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		g.Go(func() error {
			defer s.watcher.Stop()
			return s.watchLoop(ctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return s.loop(ctx)
	})

	return g.Wait()
}

func (s *Session) watchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-s.watcher.Events():
			if !ok {
				return nil
			}
			s.wf.Load(change.Content)
			s.out.notice("Document changed on disk; reloaded %s (%d paragraphs). Progress reset.",
				filepath.Base(change.Path), s.wf.Remaining())
		}
	}
}

func (s *Session) loop(ctx context.Context) error {
	s.out.info("Rule Harvester. Type 'help' for commands.")
	if s.wf.Document() != "" {
		s.out.info("Document %s: %d paragraphs to process.", s.docLabel(), s.wf.Remaining())
	}

	for {
		s.out.prompt()
		if !s.in.Scan() {
			if err := s.in.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			s.out.println("")
			return nil
		}

		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		quit, err := s.Execute(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Execute runs one command line. It reports whether the session should end.
// Command failures are printed, not returned; only input errors are.
func (s *Session) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	cmd, ok := commands[name]
	if !ok {
		s.out.errorf("Unknown command %q. Type 'help' for commands.", name)
		return false, nil
	}
	s.logger.Debug("command", zap.String("name", name), zap.Int("args", len(args)))
	return cmd.run(ctx, s, args)
}

// readBlock reads lines until a line holding only "." or end of input.
func (s *Session) readBlock() (string, error) {
	var lines []string
	for s.in.Scan() {
		line := s.in.Text()
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	if err := s.in.Err(); err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

// readLine reads one more line of input.
func (s *Session) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *Session) docLabel() string {
	if s.docPath == "" {
		return "(pasted)"
	}
	return s.docPath
}

// report prints a workflow or extraction error. Workflow notices are shown
// as notices; everything else as an error.
func (s *Session) report(err error) {
	switch {
	case workflow.IsNotice(err):
		s.out.notice("%s", capitalize(err.Error()))
	case errors.Is(err, context.Canceled):
		s.out.notice("Cancelled.")
	default:
		s.out.errorf("Error: %v", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// printer serialises output from the command loop and the watcher.
type printer struct {
	mu   sync.Mutex
	w    io.Writer
	ok   *color.Color
	warn *color.Color
	bad  *color.Color
	dim  *color.Color
	bold *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:    w,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, s)
}

func (p *printer) prompt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, prompt)
}

func (p *printer) info(format string, args ...any) {
	p.println(fmt.Sprintf(format, args...))
}

func (p *printer) success(format string, args ...any) {
	p.println(p.ok.Sprintf(format, args...))
}

func (p *printer) notice(format string, args ...any) {
	p.println(p.warn.Sprintf(format, args...))
}

func (p *printer) errorf(format string, args ...any) {
	p.println(p.bad.Sprintf(format, args...))
}
