// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/autotagger/pkg/types"
)

const sampleCSLYAML = `
- id: smith2021
  type: article-journal
  title: Tumour heterogeneity in  colorectal cancer
  author:
    - family: Smith
      given: Jane
    - literal: The Consortium
  editor:
    - family: Doe
      given: John
  container-title: Nature Medicine
  issued:
    date-parts: [[2021, 3]]
  DOI: 10.1038/nm.1234
  note: "PMID: 33445566"
  keyword: oncology, genomics
- id: lee2019
  title: Untagged preprint
  issued:
    raw: Spring 2019
`

const sampleCSLJSON = `[
	{
		"id": "json1",
		"type": "paper-conference",
		"title": "Graph networks",
		"author": [{"family": "Kim", "given": "Ada"}],
		"issued": {"date-parts": [["2020", "11", "2"]]},
		"PMID": "123"
	}
]`

func TestReadCSL_YAML(t *testing.T) {
	items, err := ReadCSL(strings.NewReader(sampleCSLYAML))
	require.NoError(t, err)
	require.Len(t, items, 2)

	it := items[0]
	assert.Equal(t, "smith2021", it.ID)
	assert.Equal(t, "article-journal", it.ItemType)
	assert.Equal(t, "Nature Medicine", it.Venue)
	assert.Equal(t, "2021-03", it.Date)
	assert.Equal(t, "10.1038/nm.1234", it.DOI)
	assert.Equal(t, "33445566", it.PMIDHint)
	assert.Equal(t, []string{"oncology", "genomics"}, it.Tags)
	assert.Equal(t, []types.Creator{
		{FirstName: "Jane", LastName: "Smith", Role: types.RoleAuthor},
		{LastName: "The Consortium", Role: types.RoleAuthor},
		{FirstName: "John", LastName: "Doe", Role: types.RoleEditor},
	}, it.Creators)

	assert.Equal(t, "Spring 2019", items[1].Date)
	assert.Empty(t, items[1].Tags)
}

func TestReadCSL_JSONWithStringDateParts(t *testing.T) {
	items, err := ReadCSL(strings.NewReader(sampleCSLJSON))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "2020-11-02", items[0].Date)
	assert.Equal(t, "123", items[0].PMIDHint)
	assert.Equal(t, "paper-conference", items[0].ItemType)
}

func TestReadCSL_SingleObjectAndErrors(t *testing.T) {
	items, err := ReadCSL(strings.NewReader(`{"id": "one", "title": "Solo"}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Solo", items[0].Title)

	_, err = ReadCSL(strings.NewReader(`[{"id": `))
	assert.Error(t, err)
}

func TestWriteCSL_RoundTrip(t *testing.T) {
	in, err := ReadCSL(strings.NewReader(sampleCSLYAML))
	require.NoError(t, err)

	for _, format := range []string{FormatYAML, FormatJSON} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSL(&buf, in, format))

			out, err := ReadCSL(&buf)
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Equal(t, in[0].Tags, out[0].Tags)
			assert.Equal(t, in[0].Creators, out[0].Creators)
			assert.Equal(t, "2021-03", out[0].Date)
			assert.Equal(t, in[0].PMIDHint, out[0].PMIDHint)
		})
	}

	assert.Error(t, WriteCSL(&bytes.Buffer{}, in, "bibtex"))
}

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "lib", "library.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLibrary_AddAndGet(t *testing.T) {
	ctx := context.Background()
	l := openTestLibrary(t)
	items, err := ReadCSL(strings.NewReader(sampleCSLYAML))
	require.NoError(t, err)

	summary, err := l.Add(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Added)
	assert.Len(t, summary.New, 2)

	got, err := l.Get(ctx, "smith2021")
	require.NoError(t, err)
	assert.Equal(t, items[0], got)

	// Re-import updates rather than duplicates.
	items[0].Title = "Revised title"
	summary, err = l.Add(ctx, items[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Empty(t, summary.New)

	all, err := l.Items(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Revised title", all[0].Title)
}

func TestLibrary_GeneratesMissingIDs(t *testing.T) {
	ctx := context.Background()
	l := openTestLibrary(t)

	summary, err := l.Add(ctx, []types.Item{{Title: "No id"}})
	require.NoError(t, err)
	require.Len(t, summary.New, 1)
	assert.NotEmpty(t, summary.New[0].ID)

	_, err = l.Get(ctx, summary.New[0].ID)
	assert.NoError(t, err)
}

func TestLibrary_ApplyTags(t *testing.T) {
	ctx := context.Background()
	l := openTestLibrary(t)
	items, err := ReadCSL(strings.NewReader(sampleCSLYAML))
	require.NoError(t, err)
	_, err = l.Add(ctx, items)
	require.NoError(t, err)

	require.NoError(t, l.ApplyTags(ctx, items[1], []string{"Preprints", "Machine Learning"}))
	require.NoError(t, l.ApplyTags(ctx, items[0], []string{"oncology", "Colorectal Neoplasms"}))

	got, err := l.Get(ctx, "lee2019")
	require.NoError(t, err)
	assert.Equal(t, []string{"Preprints", "Machine Learning"}, got.Tags)

	auto, err := l.AutomaticTags(ctx, "smith2021")
	require.NoError(t, err)
	assert.Equal(t, []string{"Colorectal Neoplasms"}, auto, "an existing manual tag keeps its flag")

	tags, err := l.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Colorectal Neoplasms", "genomics", "Machine Learning", "oncology", "Preprints"}, tags)
}

func TestLibrary_ApplyTagsUnknownItem(t *testing.T) {
	l := openTestLibrary(t)
	err := l.ApplyTags(context.Background(), types.Item{ID: "ghost"}, []string{"x"})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestLibrary_ItemsByID(t *testing.T) {
	ctx := context.Background()
	l := openTestLibrary(t)
	items, err := ReadCSL(strings.NewReader(sampleCSLYAML))
	require.NoError(t, err)
	_, err = l.Add(ctx, items)
	require.NoError(t, err)

	got, err := l.Items(ctx, "lee2019", "smith2021")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "lee2019", got[0].ID)

	_, err = l.Items(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}
