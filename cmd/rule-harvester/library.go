// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rule-harvester/internal/export"
	"github.com/pdiddy/rule-harvester/internal/library"
	"github.com/pdiddy/rule-harvester/internal/workflow"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the rule library (import, list, search, export, delete)",
	Long: `Library archives rule lists in a local SQLite database with full-text
search over titles and descriptions. Save a session's rules with 'save', or
import export files with 'library import'.`,
}

// --- import subcommand ---

var libraryImportCmd = &cobra.Command{
	Use:   "import <file|dir>",
	Short: "Import export files into the library",
	Long: `Import reads a rules-export JSON file into a new rule set. Given a
directory, it imports every rules-export-*.json file in it; files unchanged
since their last import are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runLibraryImport,
}

func runLibraryImport(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")

	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}

	if info.IsDir() {
		summary, err := store.ImportDir(context.Background(), args[0], os.Stdout)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d file(s) failed to import", summary.Failed)
		}
		return nil
	}

	set, err := store.ImportFile(context.Background(), args[0], name)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d rules as %q (set %d)\n", set.RuleCount, set.Name, set.ID)
	return nil
}

// --- list subcommand ---

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived rule sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		sets, err := store.Sets(context.Background())
		if err != nil {
			return err
		}
		if len(sets) == 0 {
			fmt.Println("The library is empty.")
			return nil
		}

		fmt.Printf("%-5s  %-30s  %-6s  %-20s  %s\n", "Set", "Name", "Rules", "Created", "Source")
		fmt.Println(strings.Repeat("-", 90))
		for _, s := range sets {
			fmt.Printf("%-5d  %-30s  %-6d  %-20s  %s\n",
				s.ID, clip(s.Name, 30), s.RuleCount, s.CreatedAt, s.Source)
		}
		return nil
	},
}

// --- search subcommand ---

var librarySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search across archived rules",
	Long: `Search matches rule titles and descriptions using SQLite FTS4 query
syntax (e.g. 'refund', 'refund OR return', 'title:overtime'). Use --set to
restrict the search to one rule set, or to list a set when no query is given.`,
	RunE: runLibrarySearch,
}

func runLibrarySearch(cmd *cobra.Command, args []string) error {
	setID, _ := cmd.Flags().GetInt64("set")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	opts := library.QueryOptions{
		Query:      strings.Join(args, " "),
		SetID:      setID,
		MaxResults: limit,
	}
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query or --set")
	}

	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Search(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("%-4s  %-30s  %-50s  %s\n", "Rank", "Title", "Description", "Set")
	fmt.Println(strings.Repeat("-", 100))
	for i, r := range results {
		fmt.Printf("%-4d  %-30s  %-50s  %s\n",
			i+1, clip(r.Title, 30), clip(r.Description, 50), r.SetName)
	}
	fmt.Printf("\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var libraryExportCmd = &cobra.Command{
	Use:   "export <set-id>",
	Short: "Export an archived rule set",
	Long: `Export writes a rule set as a rules-export JSON file (the same format
the session produces) or, with --format yaml, prints it with its metadata.`,
	Args: cobra.ExactArgs(1),
	RunE: runLibraryExport,
}

func runLibraryExport(cmd *cobra.Command, args []string) error {
	id, err := parseSetID(args[0])
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = appCfg.Export.Dir
	}

	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	switch format {
	case "json", "":
		_, rules, err := store.ExportSet(context.Background(), id)
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			return workflow.ErrEmptyExport
		}
		data, err := workflow.EncodeRules(rules)
		if err != nil {
			return err
		}
		sink := export.NewFileSink(outDir, logger)
		if err := sink.Deliver(workflow.ExportFilename(time.Now()), data); err != nil {
			return err
		}
		fmt.Printf("%d rules exported to %s\n", len(rules), sink.Path())
	case "yaml":
		data, err := store.ExportYAML(context.Background(), id)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	default:
		return fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
	return nil
}

// --- delete subcommand ---

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <set-id>",
	Short: "Delete an archived rule set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSetID(args[0])
		if err != nil {
			return err
		}
		store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteSet(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted set %d\n", id)
		return nil
	},
}

// --- shared helpers ---

func parseSetID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid set id %q", s)
	}
	return id, nil
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func init() {
	libraryImportCmd.Flags().String("name", "", "name for the imported set (default: file name)")

	librarySearchCmd.Flags().Int64("set", 0, "restrict to one rule set")
	librarySearchCmd.Flags().Int("limit", 0, "maximum results (0 = use library.max_results)")
	librarySearchCmd.Flags().Bool("json", false, "output results as JSON")

	libraryExportCmd.Flags().String("format", "json", "export format: json or yaml")
	libraryExportCmd.Flags().String("out", "", "directory for the JSON export (default: export.dir)")

	libraryCmd.AddCommand(libraryImportCmd)
	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(librarySearchCmd)
	libraryCmd.AddCommand(libraryExportCmd)
	libraryCmd.AddCommand(libraryDeleteCmd)

	rootCmd.AddCommand(libraryCmd)
}
