// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pdiddy/autotagger/internal/tagger"
	"github.com/pdiddy/autotagger/pkg/types"
)

var tagCmd = &cobra.Command{
	Use:   "tag [item-ids...]",
	Short: "Generate and apply tags to library items",
	Long: `Tag runs the tagging pipeline over the given items, or over the whole
library with --all. For each item the cache is consulted first, then PubMed,
then the AI fallback. The processed tags are added to the item with the
automatic flag.

Interrupt with Ctrl-C to stop after the current item; tags already applied
are kept.`,
	RunE: runTag,
}

func init() {
	tagCmd.Flags().Bool("all", false, "tag every item in the library")
	tagCmd.Flags().Bool("skip-tagged", false, "skip items that already have tags (overrides batch.skip_tagged)")
	tagCmd.Flags().Bool("supplement", false, "also ask the AI source when PubMed found keywords")
	tagCmd.Flags().Bool("dry-run", false, "print the generated tags without applying them")
	tagCmd.Flags().Duration("delay", 0, "delay between consecutive items (default from batch.item_delay)")
	tagCmd.Flags().Bool("no-progress", false, "disable the progress bar")

	rootCmd.AddCommand(tagCmd)
}

func runTag(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if len(args) == 0 && !all {
		return fmt.Errorf("provide one or more item IDs, or --all")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("skip-tagged"); f.Changed {
		cfg.Batch.SkipTagged, _ = cmd.Flags().GetBool("skip-tagged")
	}
	if supplement, _ := cmd.Flags().GetBool("supplement"); supplement {
		cfg.Sources.SupplementAI = true
	}
	if delay, _ := cmd.Flags().GetDuration("delay"); delay != 0 {
		cfg.Batch.ItemDelay = delay
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	items, err := p.library.Items(ctx, args...)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No items to tag.")
		return nil
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	b := p.batch()
	b.DryRun = dryRun

	var bar *progressbar.ProgressBar
	if !noProgress && len(items) > 1 && stderrIsTerminal() {
		bar = progressbar.NewOptions(len(items),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}

	b.OnTags = func(item types.Item, tags []string) {
		if bar != nil && !dryRun {
			return
		}
		if bar != nil {
			bar.Clear()
		}
		fmt.Printf("%s\t%s\n", item.ID, strings.Join(tags, ", "))
	}

	res := b.Run(ctx, items, func(current, total int, item types.Item) {
		if bar != nil {
			bar.Describe(truncate(item.Title, 40))
			bar.Set(current - 1)
		}
	})
	if bar != nil {
		bar.Finish()
	}

	printBatchSummary(res)
	if res.Stopped {
		fmt.Fprintln(os.Stderr, "Stopped before all items were processed.")
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d item(s) failed tagging", res.Failed)
	}
	return nil
}

func printBatchSummary(res tagger.BatchResult) {
	fmt.Println(renderTable(
		[]string{"Run", "Success", "Failed", "Skipped", "Total"},
		[][]string{{
			res.RunID[:8],
			fmt.Sprint(res.Success),
			fmt.Sprint(res.Failed),
			fmt.Sprint(res.Skipped),
			fmt.Sprint(res.Total()),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))

	if len(res.Errors) == 0 {
		return
	}
	rows := make([][]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		rows = append(rows, []string{e.ItemID, truncate(e.Title, 40), e.Err.Error()})
	}
	fmt.Println(renderTable([]string{"Item", "Title", "Error"}, rows, nil))
}

// tagNewItems runs a batch over freshly imported items, used by import
// --auto-tag.
func tagNewItems(ctx context.Context, p *pipeline, items []types.Item) tagger.BatchResult {
	return p.batch().Run(ctx, items, func(current, total int, item types.Item) {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", current, total, truncate(item.Title, 60))
	})
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
