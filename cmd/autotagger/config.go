// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write preferences",
	Long: `Config reads and writes the preferences stored in the config file.
Values set here are saved to the file in use, or to ./autotagger.yaml.
Environment variables (AUTOTAGGER_*, dots replaced by underscores)
override the file.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a preference value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok := store.Get(args[0])
		if !ok {
			return fmt.Errorf("preference %q is not set", args[0])
		}
		fmt.Println(v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference and save it",
	Long: `Set stores a preference and saves the config file. List preferences
such as tags.synonyms and tags.blacklist take JSON text, for example:

  autotagger config set tags.blacklist '["review","humans"]'
  autotagger config set tags.synonyms '[{"from":"ml","to":"Machine Learning"}]'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store.Set(args[0], args[1])
		// Reject values the typed configuration cannot accept before saving.
		if _, err := loadConfig(); err != nil {
			return err
		}
		return store.Save()
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every preference and its effective value",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := store.Keys()
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			v, _ := store.Get(k)
			rows = append(rows, []string{k, redact(k, fmt.Sprint(v))})
		}
		fmt.Println(renderTable([]string{"Key", "Value"}, rows, nil))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}

// redact hides API keys in listings.
func redact(key, value string) string {
	if value == "" || !strings.HasSuffix(key, "api_key") {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
