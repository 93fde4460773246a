// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/autotagger/internal/tagcache"
)

var errCacheDisabled = errors.New("the tag cache is disabled (cache.enabled=false)")

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the tag cache",
	Long: `Cache manages the tag cache, which maps a DOI (or a title when there is
no DOI) to the tags generated for it. Entries older than cache.max_age are
ignored and removed on the next lookup.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cache entries with their age",
	RunE: withCache(func(cmd *cobra.Command, args []string, c *tagcache.Cache) error {
		entries, err := c.Entries(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Cache is empty.")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			state := "valid"
			if c.Expired(e) {
				state = "expired"
			}
			rows = append(rows, []string{
				truncate(e.Key, 50),
				humanize.Time(e.CreatedAt),
				state,
				truncate(strings.Join(e.Tags, ", "), 60),
			})
		}
		fmt.Println(renderTable([]string{"Key", "Created", "State", "Tags"}, rows, nil))
		return nil
	}),
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show the cached tags for a DOI or title",
	Args:  cobra.ExactArgs(1),
	RunE: withCache(func(cmd *cobra.Command, args []string, c *tagcache.Cache) error {
		tags, ok := c.Get(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("no valid cache entry for %q", args[0])
		}
		for _, t := range tags {
			fmt.Println(t)
		}
		return nil
	}),
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <key>...",
	Short: "Delete cache entries",
	Args:  cobra.MinimumNArgs(1),
	RunE: withCache(func(cmd *cobra.Command, args []string, c *tagcache.Cache) error {
		for _, key := range args {
			if err := c.Delete(cmd.Context(), key); err != nil {
				return err
			}
		}
		fmt.Printf("Deleted %d entr%s.\n", len(args), plural(len(args), "y", "ies"))
		return nil
	}),
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE: withCache(func(cmd *cobra.Command, args []string, c *tagcache.Cache) error {
		if err := c.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	}),
}

func init() {
	cacheCmd.AddCommand(cacheListCmd, cacheGetCmd, cacheDeleteCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// withCache opens the configured cache around fn.
func withCache(fn func(cmd *cobra.Command, args []string, c *tagcache.Cache) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, st, err := openCache(cfg)
		if err != nil {
			return err
		}
		if c == nil {
			return errCacheDisabled
		}
		defer st.Close()
		return fn(cmd, args, c)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
