// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/rule-harvester/internal/export"
	"github.com/pdiddy/rule-harvester/internal/secrets"
	"github.com/pdiddy/rule-harvester/internal/workflow"
	"github.com/pdiddy/rule-harvester/pkg/types"
)

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, s *Session, args []string) (bool, error)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"load":   {"load <file>", "load a document from a file (resets progress)", cmdLoad},
		"paste":  {"paste", "type or paste a document; end with a line holding only '.'", cmdPaste},
		"next":   {"next", "extract a rule from the next paragraph", cmdNext},
		"run":    {"run", "extract from every remaining paragraph, stopping at the first error", cmdRun},
		"status": {"status", "show progress", cmdStatus},
		"list":   {"list", "list extracted rules", cmdList},
		"show":   {"show <n|id>", "show one rule in full", cmdShow},
		"delete": {"delete <n|id>", "delete a rule", cmdDelete},
		"export": {"export [dir]", "write the rules to rules-export-YYYY-MM-DD.json", cmdExport},
		"save":   {"save [name]", "archive the rules in the rule library", cmdSave},
		"reset":  {"reset", "start over on the current document", cmdReset},
		"key":    {"key set [value] | key clear | key show [--reveal]", "manage the API key", cmdKey},
		"help":   {"help", "show this help", cmdHelp},
		"quit":   {"quit", "leave the session", cmdQuit},
	}
	commands["exit"] = commands["quit"]
}

func cmdHelp(_ context.Context, s *Session, _ []string) (bool, error) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		if name != "exit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(&b, "  %-48s %s\n", c.usage, c.help)
	}
	s.out.info("%s", strings.TrimRight(b.String(), "\n"))
	return false, nil
}

func cmdQuit(context.Context, *Session, []string) (bool, error) {
	return true, nil
}

func cmdLoad(_ context.Context, s *Session, args []string) (bool, error) {
	if len(args) != 1 {
		s.out.errorf("Usage: load <file>")
		return false, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		s.out.errorf("Error: %v", err)
		return false, nil
	}
	s.docPath = args[0]
	s.wf.Load(string(data))
	s.out.success("Loaded %s: %d paragraphs to process.", s.docPath, s.wf.Remaining())
	return false, nil
}

func cmdPaste(_ context.Context, s *Session, _ []string) (bool, error) {
	s.out.info("Enter the document. End with a line holding only '.'.")
	text, err := s.readBlock()
	if err != nil {
		return false, err
	}
	s.docPath = ""
	s.wf.Load(text)
	s.out.success("Document loaded: %d paragraphs to process.", s.wf.Remaining())
	return false, nil
}

func cmdNext(ctx context.Context, s *Session, _ []string) (bool, error) {
	s.next(ctx)
	return false, nil
}

// next runs one extraction and prints its outcome. It reports whether
// another extraction could follow.
func (s *Session) next(ctx context.Context) bool {
	step, err := s.wf.ExtractNext(ctx)
	total := len(s.wf.State().Paragraphs)
	if err != nil {
		s.report(err)
		return false
	}

	if step.Outcome.HasRule() {
		s.out.success("[%d/%d] Rule found: %s", step.Index+1, total, step.Outcome.Rule.Title)
	} else {
		s.out.info("[%d/%d] No rule found.", step.Index+1, total)
	}
	s.out.info("%s", ProgressBar(step.Progress, barWidth))
	return !step.Done
}

func cmdRun(ctx context.Context, s *Session, _ []string) (bool, error) {
	for s.next(ctx) {
		if ctx.Err() != nil {
			break
		}
	}
	return false, nil
}

func cmdStatus(_ context.Context, s *Session, _ []string) (bool, error) {
	st := s.wf.State()
	s.out.info("%s", ProgressBar(st.Progress, barWidth))
	s.out.info("Document: %s", s.docLabel())
	s.out.info("Rules: %d  Remaining paragraphs: %d", len(st.Rules), s.wf.Remaining())
	if st.Processing {
		s.out.notice("An extraction is in progress.")
	}
	return false, nil
}

func cmdList(_ context.Context, s *Session, _ []string) (bool, error) {
	rules := s.wf.Rules()
	if len(rules) == 0 {
		s.out.info("No rules extracted yet. Use 'next' to begin.")
		return false, nil
	}
	s.out.info("Extracted Rules (%d)", len(rules))
	for i, r := range rules {
		s.out.info("%3d. %s  %s", i+1, s.out.bold.Sprint(r.Title), s.out.dim.Sprint(r.ID))
		s.out.info("     %s", Truncate(r.Description, summaryLength))
	}
	return false, nil
}

// lookup resolves a 1-based list number or a rule id.
func (s *Session) lookup(ref string) (types.Rule, bool) {
	if n, err := strconv.Atoi(ref); err == nil {
		rules := s.wf.Rules()
		if n >= 1 && n <= len(rules) {
			return rules[n-1], true
		}
		return types.Rule{}, false
	}
	return s.wf.Rule(ref)
}

func cmdShow(_ context.Context, s *Session, args []string) (bool, error) {
	if len(args) != 1 {
		s.out.errorf("Usage: show <n|id>")
		return false, nil
	}
	r, ok := s.lookup(args[0])
	if !ok {
		s.out.errorf("No rule %s.", args[0])
		return false, nil
	}
	s.out.info("%s", s.out.bold.Sprint(r.Title))
	s.out.info("%s", r.Description)
	s.out.info("%s", s.out.dim.Sprint("id: "+r.ID))
	return false, nil
}

func cmdDelete(_ context.Context, s *Session, args []string) (bool, error) {
	if len(args) != 1 {
		s.out.errorf("Usage: delete <n|id>")
		return false, nil
	}
	r, ok := s.lookup(args[0])
	if !ok || !s.wf.DeleteRule(r.ID) {
		s.out.notice("No rule %s; nothing deleted.", args[0])
		return false, nil
	}
	s.out.success("Deleted %q. %d rules remain.", r.Title, len(s.wf.Rules()))
	return false, nil
}

func cmdExport(_ context.Context, s *Session, args []string) (bool, error) {
	dir := s.exportDir
	if len(args) > 0 {
		dir = args[0]
	}
	sink := export.NewFileSink(dir, s.logger)
	exp, err := s.wf.ExportRules(s.now(), sink)
	if err != nil {
		if workflow.IsNotice(err) {
			s.report(err)
		} else {
			s.out.errorf("Export failed: %v", err)
		}
		return false, nil
	}
	s.out.success("Export successful: %d rules exported to %s.", exp.Count, sink.Path())
	return false, nil
}

func cmdSave(ctx context.Context, s *Session, args []string) (bool, error) {
	if s.archive == nil {
		s.out.errorf("The rule library is not available.")
		return false, nil
	}
	rules := s.wf.Rules()
	if len(rules) == 0 {
		s.report(workflow.ErrEmptyExport)
		return false, nil
	}

	name := strings.Join(args, " ")
	if name == "" {
		name = s.defaultSetName()
	}
	set, err := s.archive.SaveSet(ctx, name, s.docPath, rules)
	if err != nil {
		s.out.errorf("Save failed: %v", err)
		return false, nil
	}
	s.out.success("Saved %d rules to the library as %q (set %d).", set.RuleCount, set.Name, set.ID)
	return false, nil
}

func (s *Session) defaultSetName() string {
	if s.docPath != "" {
		base := filepath.Base(s.docPath)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "session-" + s.now().UTC().Format("2006-01-02-150405")
}

func cmdReset(_ context.Context, s *Session, _ []string) (bool, error) {
	s.wf.Reset()
	s.out.info("Progress reset. %d paragraphs to process.", s.wf.Remaining())
	return false, nil
}

func cmdKey(_ context.Context, s *Session, args []string) (bool, error) {
	if len(args) == 0 {
		s.out.errorf("Usage: %s", commands["key"].usage)
		return false, nil
	}
	store := s.keys.Store

	switch args[0] {
	case "set":
		if store == nil {
			s.out.errorf("No key store configured.")
			return false, nil
		}
		value := strings.Join(args[1:], " ")
		if value == "" {
			s.out.info("Enter the API key:")
			line, ok := s.readLine()
			if !ok {
				return false, nil
			}
			value = line
		}
		if strings.TrimSpace(value) == "" {
			s.out.notice("No key entered; nothing saved.")
			return false, nil
		}
		if !store.Save(value) {
			s.out.errorf("Could not save the API key; see the log for details.")
			return false, nil
		}
		s.out.success("API key saved.")
		if s.keys.Override != "" {
			s.out.notice("The key from the environment still takes precedence.")
		}

	case "clear":
		if store == nil || !store.Clear() {
			s.out.errorf("Could not clear the API key; see the log for details.")
			return false, nil
		}
		s.out.success("API key cleared.")

	case "show":
		value := s.keys.Get()
		if value == "" {
			s.out.notice("No API key configured. Use 'key set' to add one.")
			return false, nil
		}
		if len(args) < 2 || args[1] != "--reveal" {
			value = secrets.Mask(value)
		}
		s.out.info("API key (%s): %s", s.keys.Source(), value)

	default:
		s.out.errorf("Usage: %s", commands["key"].usage)
	}
	return false, nil
}
