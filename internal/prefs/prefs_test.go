// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/autotagger/pkg/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(nil, nil))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Processor.MaxTags)
	assert.False(t, cfg.Processor.TitleCase)
	assert.Empty(t, cfg.Processor.Synonyms)
	assert.Empty(t, cfg.Processor.Blacklist)
	assert.Equal(t, 24*time.Hour, cfg.Cache.MaxAge)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 350*time.Millisecond, cfg.PubMed.MinInterval)
	assert.Equal(t, 12*time.Second, cfg.AI.MinInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.Batch.ItemDelay)
	assert.True(t, cfg.Batch.SkipTagged)
	assert.True(t, cfg.Sources.UsePubMed)
	assert.True(t, cfg.Sources.UseAI)
	assert.Equal(t, types.ProviderAnthropic, cfg.AI.Provider)
	assert.Equal(t, "autotagger", cfg.PubMed.Tool)
}

func TestLoad_JSONTextLists(t *testing.T) {
	s := New(nil, nil)
	s.Set(KeySynonyms, `[{"from":"ml","to":"Machine Learning"}]`)
	s.Set(KeyBlacklist, `["review","humans"]`)

	cfg, err := Load(s)
	require.NoError(t, err)

	assert.Equal(t, []types.Synonym{{From: "ml", To: "Machine Learning"}}, cfg.Processor.Synonyms)
	assert.Equal(t, []string{"review", "humans"}, cfg.Processor.Blacklist)
}

func TestLoad_SynonymObjectForm(t *testing.T) {
	s := New(nil, nil)
	s.Set(KeySynonyms, `{"nn":"Neural Networks","ai":"Artificial Intelligence"}`)

	cfg, err := Load(s)
	require.NoError(t, err)

	assert.Equal(t, []types.Synonym{
		{From: "ai", To: "Artificial Intelligence"},
		{From: "nn", To: "Neural Networks"},
	}, cfg.Processor.Synonyms)
}

func TestLoad_MalformedListsAreIgnored(t *testing.T) {
	s := New(nil, nil)
	s.Set(KeySynonyms, `not json`)
	s.Set(KeyBlacklist, `{"oops":`)

	cfg, err := Load(s)
	require.NoError(t, err)
	assert.Empty(t, cfg.Processor.Synonyms)
	assert.Empty(t, cfg.Processor.Blacklist)
}

func TestLoad_UnknownProvider(t *testing.T) {
	s := New(nil, nil)
	s.Set(KeyAIProvider, "gemini")

	_, err := Load(s)
	assert.ErrorContains(t, err, "gemini")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("AUTOTAGGER_TAGS_MAX_TAGS", "4")
	t.Setenv("AUTOTAGGER_AI_API_KEY", "from-env")

	cfg, err := Load(New(nil, nil))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Processor.MaxTags)
	assert.Equal(t, "from-env", cfg.AI.APIKey)
}

func TestOpen_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autotagger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tags:
  max_tags: 7
  title_case: true
  synonyms:
    - from: dl
      to: Deep Learning
  blacklist: [review]
cache:
  max_age: 2h
batch:
  item_delay: 1s
`), 0o644))

	s, err := Open(path, nil)
	require.NoError(t, err)
	cfg, err := Load(s)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Processor.MaxTags)
	assert.True(t, cfg.Processor.TitleCase)
	assert.Equal(t, []types.Synonym{{From: "dl", To: "Deep Learning"}}, cfg.Processor.Synonyms)
	assert.Equal(t, []string{"review"}, cfg.Processor.Blacklist)
	assert.Equal(t, 2*time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, time.Second, cfg.Batch.ItemDelay)
}

func TestOpen_MissingFileUsesDefaults(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.NoError(t, err)
	assert.True(t, s.Has(KeyMaxTags))
}

func TestStore_GetSetHasSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "autotagger.yaml")
	s, err := Open(path, nil)
	require.NoError(t, err)

	_, ok := s.Get("tags.unknown")
	assert.False(t, ok)
	assert.False(t, s.Has("tags.unknown"))

	s.Set(KeyMaxTags, 3)
	v, ok := s.Get(KeyMaxTags)
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Contains(t, s.Keys(), KeyMaxTags)

	require.NoError(t, s.Save())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	cfg, err := Load(reopened)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Processor.MaxTags)
}
