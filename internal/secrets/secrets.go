// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: ncbi-api-key, ncbi-email, anthropic-api-key, openai-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/pkg/types"
)

// Key file names.
const (
	NCBIAPIKey      = "ncbi-api-key"
	NCBIEmail       = "ncbi-email"
	AnthropicAPIKey = "anthropic-api-key"
	OpenAIAPIKey    = "openai-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings but do not abort.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", slog.String("name", name), logging.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills credentials in cfg from loaded secrets. Values already set
// in cfg (from the config file or environment) take precedence. The AI key
// is chosen by cfg.AI.Provider.
func Apply(cfg *types.Config, secrets map[string]string) {
	setIfEmpty(&cfg.PubMed.APIKey, secrets[NCBIAPIKey])
	setIfEmpty(&cfg.PubMed.Email, secrets[NCBIEmail])

	switch cfg.AI.Provider {
	case types.ProviderOpenAI:
		setIfEmpty(&cfg.AI.APIKey, secrets[OpenAIAPIKey])
	default:
		setIfEmpty(&cfg.AI.APIKey, secrets[AnthropicAPIKey])
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
