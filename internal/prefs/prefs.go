// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prefs is the preference store behind every tunable: API keys,
// tag limits, cache age, rate-limit intervals, synonym and blacklist
// lists, and batch policy. It wraps a viper instance so values can come
// from the config file, AUTOTAGGER_* environment variables, or defaults.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/pkg/types"
)

// EnvPrefix prefixes environment overrides, e.g. AUTOTAGGER_AI_API_KEY.
const EnvPrefix = "AUTOTAGGER"

// ConfigName is the base name of the config file.
const ConfigName = "autotagger"

// Preference keys.
const (
	KeyPubMedAPIKey      = "pubmed.api_key"
	KeyPubMedTool        = "pubmed.tool"
	KeyPubMedEmail       = "pubmed.email"
	KeyPubMedInterval    = "pubmed.min_interval"
	KeyPubMedMaxKeywords = "pubmed.max_keywords"
	KeyPubMedTimeout     = "pubmed.timeout"

	KeyAIProvider = "ai.provider"
	KeyAIModel    = "ai.model"
	KeyAIAPIKey   = "ai.api_key"
	KeyAIBaseURL  = "ai.base_url"
	KeyAIInterval = "ai.min_interval"
	KeyAITimeout  = "ai.timeout"

	KeyUserAgent  = "http.user_agent"
	KeyMaxRetries = "http.max_retries"

	KeyCacheEnabled       = "cache.enabled"
	KeyCachePath          = "cache.path"
	KeyCacheMaxAge        = "cache.max_age"
	KeyCacheMemoryEntries = "cache.memory_entries"

	KeyMaxTags   = "tags.max_tags"
	KeyTitleCase = "tags.title_case"
	KeySynonyms  = "tags.synonyms"
	KeyBlacklist = "tags.blacklist"

	KeyUsePubMed    = "sources.use_pubmed"
	KeyUseAI        = "sources.use_ai"
	KeySupplementAI = "sources.supplement_ai"

	KeySkipTagged   = "batch.skip_tagged"
	KeyItemDelay    = "batch.item_delay"
	KeyAutoTagOnAdd = "batch.auto_tag_on_add"

	KeyLibraryPath = "library.path"
)

var defaults = map[string]any{
	KeyPubMedTool:        "autotagger",
	KeyPubMedInterval:    350 * time.Millisecond,
	KeyPubMedMaxKeywords: 10,
	KeyPubMedTimeout:     30 * time.Second,

	KeyAIProvider: string(types.ProviderAnthropic),
	KeyAIInterval: 12 * time.Second,
	KeyAITimeout:  60 * time.Second,

	KeyUserAgent:  "autotagger/0.1",
	KeyMaxRetries: 5,

	KeyCacheEnabled:       true,
	KeyCachePath:          filepath.Join(".autotagger", "cache.db"),
	KeyCacheMaxAge:        24 * time.Hour,
	KeyCacheMemoryEntries: 256,

	KeyMaxTags:   10,
	KeyTitleCase: false,
	KeySynonyms:  "[]",
	KeyBlacklist: "[]",

	KeyUsePubMed:    true,
	KeyUseAI:        true,
	KeySupplementAI: false,

	KeySkipTagged:   true,
	KeyItemDelay:    300 * time.Millisecond,
	KeyAutoTagOnAdd: false,

	KeyLibraryPath: filepath.Join(".autotagger", "library.db"),
}

// Store reads and writes preferences.
type Store struct {
	v      *viper.Viper
	logger *slog.Logger
}

// New wraps v, registering defaults and environment overrides. A nil v
// creates a fresh instance.
func New(v *viper.Viper, logger *slog.Logger) *Store {
	if v == nil {
		v = viper.New()
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Store{v: v, logger: logging.NewComponentLogger(logger, "prefs")}
}

// Open reads the config file at path, or searches ./autotagger.yaml and
// ~/.config/autotagger/autotagger.yaml when path is empty. A missing file
// is not an error: defaults apply and Save creates it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}

	s := New(v, logger)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		s.logger.Debug("config file loaded", slog.String("path", v.ConfigFileUsed()))
	}
	return s, nil
}

// Viper exposes the underlying instance so the CLI can bind flags to it.
func (s *Store) Viper() *viper.Viper { return s.v }

// Get returns the value for key and whether one is available from any
// layer, including defaults.
func (s *Store) Get(key string) (any, bool) {
	if !s.v.IsSet(key) {
		return nil, false
	}
	return s.v.Get(key), true
}

// Set overrides key for this process. Call Save to persist it.
func (s *Store) Set(key string, value any) {
	s.v.Set(key, value)
}

// Has reports whether key has a value from any layer.
func (s *Store) Has(key string) bool {
	return s.v.IsSet(key)
}

// Keys lists every known key, sorted.
func (s *Store) Keys() []string {
	keys := s.v.AllKeys()
	slices.Sort(keys)
	return keys
}

// Save writes all settings to the config file in use, or to
// ./autotagger.yaml when none was loaded.
func (s *Store) Save() error {
	path := s.v.ConfigFileUsed()
	if path == "" {
		path = ConfigName + ".yaml"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := s.v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Load assembles the typed configuration. Malformed synonym or blacklist
// text is logged and treated as empty so a bad list never blocks tagging.
func Load(s *Store) (types.Config, error) {
	v := s.v
	httpCfg := types.HTTPConfig{
		UserAgent:  v.GetString(KeyUserAgent),
		MaxRetries: v.GetInt(KeyMaxRetries),
	}

	cfg := types.Config{
		PubMed: types.PubMedConfig{
			HTTPConfig:  httpCfg,
			APIKey:      v.GetString(KeyPubMedAPIKey),
			Tool:        v.GetString(KeyPubMedTool),
			Email:       v.GetString(KeyPubMedEmail),
			MinInterval: v.GetDuration(KeyPubMedInterval),
			MaxKeywords: v.GetInt(KeyPubMedMaxKeywords),
		},
		AI: types.AIConfig{
			HTTPConfig:  httpCfg,
			Provider:    types.AIProvider(strings.ToLower(v.GetString(KeyAIProvider))),
			Model:       v.GetString(KeyAIModel),
			APIKey:      v.GetString(KeyAIAPIKey),
			BaseURL:     v.GetString(KeyAIBaseURL),
			MinInterval: v.GetDuration(KeyAIInterval),
		},
		Cache: types.CacheConfig{
			Enabled:       v.GetBool(KeyCacheEnabled),
			Path:          v.GetString(KeyCachePath),
			MaxAge:        v.GetDuration(KeyCacheMaxAge),
			MemoryEntries: v.GetInt(KeyCacheMemoryEntries),
		},
		Processor: types.ProcessorConfig{
			MaxTags:   v.GetInt(KeyMaxTags),
			TitleCase: v.GetBool(KeyTitleCase),
		},
		Sources: types.SourcesConfig{
			UsePubMed:    v.GetBool(KeyUsePubMed),
			UseAI:        v.GetBool(KeyUseAI),
			SupplementAI: v.GetBool(KeySupplementAI),
		},
		Batch: types.BatchConfig{
			SkipTagged:   v.GetBool(KeySkipTagged),
			ItemDelay:    v.GetDuration(KeyItemDelay),
			AutoTagOnAdd: v.GetBool(KeyAutoTagOnAdd),
		},
		Library: types.LibraryConfig{
			Path: v.GetString(KeyLibraryPath),
		},
	}
	cfg.PubMed.Timeout = v.GetDuration(KeyPubMedTimeout)
	cfg.AI.Timeout = v.GetDuration(KeyAITimeout)

	switch cfg.AI.Provider {
	case types.ProviderAnthropic, types.ProviderOpenAI:
	default:
		return cfg, fmt.Errorf("%s: unknown provider %q (want %s or %s)",
			KeyAIProvider, cfg.AI.Provider, types.ProviderAnthropic, types.ProviderOpenAI)
	}

	if err := s.synonyms(&cfg.Processor.Synonyms); err != nil {
		s.logger.Warn("ignoring malformed synonym list", logging.Error(err))
		cfg.Processor.Synonyms = nil
	}
	if err := s.list(KeyBlacklist, &cfg.Processor.Blacklist); err != nil {
		s.logger.Warn("ignoring malformed blacklist", logging.Error(err))
		cfg.Processor.Blacklist = nil
	}
	return cfg, nil
}

// list decodes a list preference stored either as JSON text or as a
// native YAML sequence.
func (s *Store) list(key string, out any) error {
	raw := s.v.Get(key)
	if text, ok := raw.(string); ok {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(text), out); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}
	if err := s.v.UnmarshalKey(key, out); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// synonyms accepts either a list of {"from","to"} pairs or a plain
// {"from": "to"} object. Object entries are sorted by source term so
// loading is deterministic.
func (s *Store) synonyms(out *[]types.Synonym) error {
	if err := s.list(KeySynonyms, out); err == nil {
		return nil
	}
	var m map[string]string
	if err := s.list(KeySynonyms, &m); err != nil {
		return err
	}
	*out = (*out)[:0]
	for _, from := range slices.Sorted(maps.Keys(m)) {
		*out = append(*out, types.Synonym{From: from, To: m[from]})
	}
	return nil
}
