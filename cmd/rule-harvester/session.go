// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/rule-harvester/internal/session"
	"github.com/pdiddy/rule-harvester/internal/watch"
)

var sessionCmd = &cobra.Command{
	Use:   "session [file]",
	Short: "Review a document interactively, one paragraph at a time",
	Long: `Session opens an interactive prompt. Load a document with 'load <file>' or
'paste', then step through it with 'next' (or 'run' for every remaining
paragraph). Review rules with 'list' and 'show', remove them with 'delete',
and write them out with 'export' or archive them with 'save'.

With --watch the document file is reloaded whenever it changes on disk, which
resets progress just like editing the text would.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSession,
}

func runSession(cmd *cobra.Command, args []string) error {
	watchFile, _ := cmd.Flags().GetBool("watch")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	keys := credentials()
	wf := newWorkflow(keys)

	cfg := session.Config{
		Workflow:  wf,
		Keys:      keys,
		ExportDir: appCfg.Export.Dir,
		Logger:    logger,
	}

	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}
		wf.Load(string(data))
		cfg.DocumentPath = args[0]

		if watchFile {
			w, err := watch.New(args[0], debounce, logger)
			if err != nil {
				return err
			}
			cfg.Watcher = w
		}
	} else if watchFile {
		return fmt.Errorf("--watch needs a document file")
	}

	lib, err := openLibrary()
	if err != nil {
		// The session still works without the library; only 'save' is lost.
		logger.Warn("rule library unavailable", zap.Error(err))
		fmt.Fprintln(os.Stderr, "warning: rule library unavailable:", err)
	} else {
		defer lib.Close()
		cfg.Archive = lib
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return session.New(cfg).Run(ctx)
}

func init() {
	sessionCmd.Flags().Bool("watch", false, "reload the document when the file changes")
	sessionCmd.Flags().Duration("debounce", watch.DefaultDebounce, "how long to wait for writes to settle before reloading")

	rootCmd.AddCommand(sessionCmd)
}
