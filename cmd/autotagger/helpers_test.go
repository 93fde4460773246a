// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééééééé...", truncate(strings.Repeat("é", 12), 10))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "****cdef", redact("ai.api_key", "sk-abcdef"))
	assert.Equal(t, "****", redact("pubmed.api_key", "abc"))
	assert.Equal(t, "", redact("ai.api_key", ""))
	assert.Equal(t, "anthropic", redact("ai.provider", "anthropic"))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Tag", "Distance"}, [][]string{{"genomics", "1"}, {"short"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "genomics")
	assert.Contains(t, out, "short")
	assert.Contains(t, out, "DISTANCE")

	assert.Empty(t, renderTable(nil, nil, nil))
}
