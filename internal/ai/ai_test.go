// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/autotagger/internal/httputil"
	"github.com/pdiddy/autotagger/pkg/types"
)

// --- mock backend ---

type mockBackend struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (m *mockBackend) Complete(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

type recordingWaiter struct{ sources []string }

func (w *recordingWaiter) Wait(_ context.Context, source string) error {
	w.sources = append(w.sources, source)
	return nil
}

func testItem() types.Item {
	return types.Item{
		ID:       "ITEM1",
		Title:    "Deep learning for protein folding",
		Abstract: "We predict structures.",
		Venue:    "Nature",
		Date:     "2021-07-15",
		ItemType: "journalArticle",
		Creators: []types.Creator{
			{FirstName: "John", LastName: "Jumper", Role: types.RoleAuthor},
			{FirstName: "Demis", LastName: "Hassabis", Role: types.RoleAuthor},
		},
	}
}

func TestParseTags(t *testing.T) {
	long := strings.Repeat("x", 100)
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"trims and drops blanks", "  Protein folding \n\n Deep learning\r\n", []string{"Protein folding", "Deep learning"}},
		{"drops long lines", "ok\n" + long + "\n" + long[:99], []string{"ok", long[:99]}},
		{"counts characters not bytes", strings.Repeat("é", 60) + "\n" + strings.Repeat("é", 100) + "\nGenomics", []string{strings.Repeat("é", 60), "Genomics"}},
		{"caps at ten", "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\nk\nl", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.in))
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	p, err := RenderPrompt(testItem())
	require.NoError(t, err)

	assert.Contains(t, p, "Title: Deep learning for protein folding")
	assert.Contains(t, p, "Authors: John Jumper, Demis Hassabis")
	assert.Contains(t, p, "Published in: Nature")
	assert.Contains(t, p, "Date: 2021-07-15")
	assert.Contains(t, p, "Type: journalArticle")
	assert.Contains(t, p, "We predict structures.")
	assert.Contains(t, p, "between 5 and 10")
}

func TestRenderPrompt_OmitsMissingFields(t *testing.T) {
	p, err := RenderPrompt(types.Item{Title: "Only a title"})
	require.NoError(t, err)

	assert.NotContains(t, p, "Authors:")
	assert.NotContains(t, p, "Abstract:")
	assert.NotContains(t, p, "Published in:")
}

func TestGenerate_MissingKeyMakesNoCall(t *testing.T) {
	b := &mockBackend{reply: "x"}
	w := &recordingWaiter{}
	s := NewSource(b, "  ", w, nil)

	_, err := s.Generate(context.Background(), testItem())

	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, b.calls)
	assert.Empty(t, w.sources)
}

func TestGenerate_ParsesReplyAndWaits(t *testing.T) {
	b := &mockBackend{reply: "Protein folding\nDeep learning\n\nStructural biology\n"}
	w := &recordingWaiter{}
	s := NewSource(b, "key", w, nil)

	tags, err := s.Generate(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, []string{"Protein folding", "Deep learning", "Structural biology"}, tags)
	assert.Equal(t, []string{"ai"}, w.sources)
	require.Len(t, b.prompts, 1)
	assert.Contains(t, b.prompts[0], "Deep learning for protein folding")
}

func TestGenerate_BackendErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	s := NewSource(&mockBackend{err: boom}, "key", nil, nil)

	_, err := s.Generate(context.Background(), testItem())

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ITEM1")
}

func TestClaudeBackend_Complete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req claudeRequest
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
		}

		w.Write([]byte(`{"content":[{"type":"text","text":"Genomics\nOncology"}]}`))
	}))
	defer ts.Close()

	old := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = old }()

	b, err := NewBackend(types.AIConfig{Provider: types.ProviderAnthropic, APIKey: "secret", Model: "test-model"}, ts.Client(), nil)
	require.NoError(t, err)

	text, err := b.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Genomics\nOncology", text)
}

func TestClaudeBackend_EmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer ts.Close()

	b := &ClaudeBackend{APIKey: "k", BaseURL: ts.URL, transport: &httputil.Client{HTTP: ts.Client()}}
	_, err := b.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClaudeBackend_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer ts.Close()

	b := &ClaudeBackend{APIKey: "k", BaseURL: ts.URL, transport: &httputil.Client{HTTP: ts.Client()}}
	_, err := b.Complete(context.Background(), "prompt")

	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}

func TestOpenAIBackend_Complete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Graphs\nNetworks"}}]}`))
	}))
	defer ts.Close()

	b, err := NewBackend(types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "secret", BaseURL: ts.URL}, ts.Client(), nil)
	require.NoError(t, err)

	text, err := b.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Graphs\nNetworks", text)
}

func TestOpenAIBackend_ErrorPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer ts.Close()

	b := &OpenAIBackend{APIKey: "k", BaseURL: ts.URL, transport: &httputil.Client{HTTP: ts.Client()}}
	_, err := b.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewBackend_UnknownProvider(t *testing.T) {
	_, err := NewBackend(types.AIConfig{Provider: "gemini"}, nil, nil)
	assert.Error(t, err)
}
