// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/autotagger/internal/library"
	"github.com/pdiddy/autotagger/internal/tagproc"
)

// --- import subcommand ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import items from a CSL-YAML or CSL-JSON file",
	Long: `Import reads a CSL list and adds its items to the library. Items whose
ID already exists have their metadata refreshed; their tags are kept.
Keywords in the file become manual tags. Use "-" to read standard input.

With --auto-tag (or batch.auto_tag_on_add) the newly added items are tagged
right away.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().Bool("auto-tag", false, "tag newly added items after import")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	items, err := library.ReadCSL(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	autoTag, _ := cmd.Flags().GetBool("auto-tag")
	autoTag = autoTag || cfg.Batch.AutoTagOnAdd

	if !autoTag {
		lib, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		defer lib.Close()
		summary, err := lib.Add(cmd.Context(), items)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d item(s): %d added, %d updated.\n", len(items), summary.Added, summary.Updated)
		return nil
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	summary, err := p.library.Add(cmd.Context(), items)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d item(s): %d added, %d updated.\n", len(items), summary.Added, summary.Updated)
	if len(summary.New) == 0 {
		return nil
	}

	res := tagNewItems(cmd.Context(), p, summary.New)
	printBatchSummary(res)
	if res.Failed > 0 {
		return fmt.Errorf("%d item(s) failed tagging", res.Failed)
	}
	return nil
}

// --- export subcommand ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the library with its tags as CSL",
	Long: `Export writes every library item as a CSL list. Tags are written to the
keyword field. The format follows --format, or the --out file extension.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "output file (default: standard output)")
	exportCmd.Flags().String("format", "", "output format: yaml or json")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	items, err := lib.Items(cmd.Context())
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = library.FormatYAML
		if strings.EqualFold(filepath.Ext(out), ".json") {
			format = library.FormatJSON
		}
	}

	if out == "" {
		return library.WriteCSL(os.Stdout, items, format)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := library.WriteCSL(f, items, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d item(s) to %s\n", len(items), out)
	return nil
}

// --- list subcommand ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List library items and their tags",
	RunE:  runList,
}

func init() {
	listCmd.Flags().Bool("json", false, "output items as JSON")
	listCmd.Flags().Bool("untagged", false, "only list items without tags")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	items, err := lib.Items(cmd.Context())
	if err != nil {
		return err
	}
	if untagged, _ := cmd.Flags().GetBool("untagged"); untagged {
		kept := items[:0]
		for _, it := range items {
			if !it.HasTags() {
				kept = append(kept, it)
			}
		}
		items = kept
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("No items.")
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.ID, truncate(it.Title, 50), it.Year(), truncate(strings.Join(it.Tags, ", "), 60)})
	}
	fmt.Println(renderTable([]string{"ID", "Title", "Year", "Tags"}, rows, nil))
	return nil
}

// --- suggest subcommand ---

var suggestCmd = &cobra.Command{
	Use:   "suggest <tag>",
	Short: "Find library tags that are close spellings of a tag",
	Long: `Suggest compares a tag against every tag in the library and lists those
within a small edit distance, closest first. Use it to spot near-duplicate
tags before adding synonyms.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	existing, err := lib.AllTags(cmd.Context())
	if err != nil {
		return err
	}
	matches := tagproc.SuggestSimilar(args[0], existing)
	if len(matches) == 0 {
		fmt.Println("No similar tags.")
		return nil
	}

	target := strings.ToLower(args[0])
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{m, fmt.Sprint(tagproc.Distance(target, strings.ToLower(m)))})
	}
	fmt.Println(renderTable([]string{"Tag", "Distance"}, rows, []columnAlignment{alignLeft, alignRight}))
	return nil
}
