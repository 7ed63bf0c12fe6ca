// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rule-harvester/internal/export"
	"github.com/pdiddy/rule-harvester/internal/workflow"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract rules from every paragraph of a document",
	Long: `Extract processes each paragraph of the document in order and writes the
rules found to rules-export-YYYY-MM-DD.json. Processing stops at the first
failed paragraph; rules found before it are still exported.

Use --save to also archive the rules in the rule library.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = appCfg.Export.Dir
	}
	saveName, _ := cmd.Flags().GetString("save")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	wf := newWorkflow(credentials())
	wf.Load(string(data))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	extractErr := extractAll(ctx, wf, os.Stdout)

	sink := export.NewFileSink(outDir, logger)
	exp, err := wf.ExportRules(time.Now(), sink)
	switch {
	case errors.Is(err, workflow.ErrEmptyExport):
		fmt.Println("No rules found; nothing exported.")
	case err != nil:
		return err
	default:
		fmt.Printf("%d rules exported to %s\n", exp.Count, sink.Path())
	}

	if saveName != "" && len(wf.Rules()) > 0 {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()
		set, err := lib.SaveSet(ctx, saveName, args[0], wf.Rules())
		if err != nil {
			return err
		}
		fmt.Printf("Saved to the library as %q (set %d)\n", set.Name, set.ID)
	}

	return extractErr
}

// extractAll triggers extraction until every paragraph is processed or one
// fails. Progress goes to w.
func extractAll(ctx context.Context, wf *workflow.Workflow, w io.Writer) error {
	for {
		step, err := wf.ExtractNext(ctx)
		if errors.Is(err, workflow.ErrAlreadyComplete) {
			return nil
		}
		if err != nil {
			return err
		}

		total := len(wf.State().Paragraphs)
		if step.Outcome.HasRule() {
			fmt.Fprintf(w, "[%d/%d] %s\n", step.Index+1, total, step.Outcome.Rule.Title)
		} else {
			fmt.Fprintf(w, "[%d/%d] no rule\n", step.Index+1, total)
		}
		if step.Done {
			fmt.Fprintln(w, workflow.StatusLabel(step.Progress))
			return nil
		}
	}
}

func init() {
	extractCmd.Flags().String("out", "", "directory for the export file (default: export.dir)")
	extractCmd.Flags().String("save", "", "archive the rules in the library under this name")

	rootCmd.AddCommand(extractCmd)
}
