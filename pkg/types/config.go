package types

import "time"

// HTTPConfig holds shared HTTP settings used by the metadata and AI sources.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "autotagger/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds the 429 backoff loop (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// PubMedConfig holds settings for the PubMed E-utilities source.
type PubMedConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is an optional NCBI API key that raises the request quota.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Tool and Email identify the client to NCBI as their usage policy asks.
	Tool  string `json:"tool" yaml:"tool"`
	Email string `json:"email" yaml:"email"`

	// MinInterval is the minimum spacing between two E-utilities requests
	// (default 350ms).
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval"`

	// MaxKeywords caps the keywords returned per record (default 10).
	MaxKeywords int `json:"max_keywords" yaml:"max_keywords"`
}

// AIProvider selects the chat API used by the generative fallback.
type AIProvider string

const (
	ProviderAnthropic AIProvider = "anthropic"
	ProviderOpenAI    AIProvider = "openai"
)

// AIConfig holds settings for the generative AI fallback source.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects the backend: anthropic or openai (any OpenAI-compatible endpoint).
	Provider AIProvider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API. An empty key is a
	// misconfiguration reported to the caller.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MinInterval is the minimum spacing between two AI calls (default 12s).
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval"`
}

// CacheConfig holds settings for the tag cache.
type CacheConfig struct {
	// Enabled turns the cache on (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file backing the cache.
	Path string `json:"path" yaml:"path"`

	// MaxAge is the age after which an entry is treated as absent (default 24h).
	MaxAge time.Duration `json:"max_age" yaml:"max_age"`

	// MemoryEntries sizes the in-process LRU in front of the store; zero disables it.
	MemoryEntries int `json:"memory_entries" yaml:"memory_entries"`
}

// Synonym maps one raw tag to its canonical form.
type Synonym struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// ProcessorConfig holds tag normalisation settings. It is read once when a
// processor is constructed.
type ProcessorConfig struct {
	// MaxTags caps the processed tag set (default 10).
	MaxTags int `json:"max_tags" yaml:"max_tags"`

	// TitleCase applies title casing during normalisation.
	TitleCase bool `json:"title_case" yaml:"title_case"`

	// Synonyms replace matching tags (case-insensitive) with a canonical term.
	Synonyms []Synonym `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`

	// Blacklist suppresses matching tags (case-insensitive).
	Blacklist []string `json:"blacklist,omitempty" yaml:"blacklist,omitempty"`
}

// SourcesConfig toggles the tag sources consulted by the generator.
type SourcesConfig struct {
	UsePubMed bool `json:"use_pubmed" yaml:"use_pubmed"`
	UseAI     bool `json:"use_ai" yaml:"use_ai"`

	// SupplementAI calls the AI source even when PubMed found keywords.
	SupplementAI bool `json:"supplement_ai" yaml:"supplement_ai"`
}

// BatchConfig holds settings for batch tagging runs.
type BatchConfig struct {
	// SkipTagged skips items that already carry at least one tag.
	SkipTagged bool `json:"skip_tagged" yaml:"skip_tagged"`

	// ItemDelay is the courtesy delay between consecutive items (default 300ms).
	ItemDelay time.Duration `json:"item_delay" yaml:"item_delay"`

	// AutoTagOnAdd tags items as soon as they are imported.
	AutoTagOnAdd bool `json:"auto_tag_on_add" yaml:"auto_tag_on_add"`
}

// LibraryConfig locates the local item library.
type LibraryConfig struct {
	// Path is the SQLite database file holding items and their tags.
	Path string `json:"path" yaml:"path"`
}

// Config groups all settings for a tagging run.
type Config struct {
	PubMed    PubMedConfig    `json:"pubmed" yaml:"pubmed"`
	AI        AIConfig        `json:"ai" yaml:"ai"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Processor ProcessorConfig `json:"tags" yaml:"tags"`
	Sources   SourcesConfig   `json:"sources" yaml:"sources"`
	Batch     BatchConfig     `json:"batch" yaml:"batch"`
	Library   LibraryConfig   `json:"library" yaml:"library"`
}
