// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the autotagger pipeline:
// bibliographic items as seen by the tagger and the configuration of every
// pipeline stage.
package types

import (
	"regexp"
	"strings"
)

// Creator roles. Only RoleAuthor counts as an author for searches.
const (
	RoleAuthor = "author"
	RoleEditor = "editor"
)

// Creator is one person attached to an item, in item order.
type Creator struct {
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`

	// Role is the creator type, e.g. "author" or "editor".
	Role string `json:"role" yaml:"role"`
}

// Item is a bibliographic record owned by the library. The tagger reads
// it and proposes tags; it never mutates it.
type Item struct {
	// ID is the library's opaque identifier.
	ID string `json:"id" yaml:"id"`

	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	DOI      string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Extra is the free-text note field; it may carry "PMID: 12345".
	Extra string `json:"extra,omitempty" yaml:"extra,omitempty"`

	// PMIDHint is the PubMed identifier parsed from Extra, if any.
	PMIDHint string `json:"pmid_hint,omitempty" yaml:"pmid_hint,omitempty"`

	Creators []Creator `json:"creators,omitempty" yaml:"creators,omitempty"`

	// Date is the publication date as recorded, in any textual form.
	Date string `json:"date,omitempty" yaml:"date,omitempty"`

	// ItemType is the kind of record, e.g. "journalArticle".
	ItemType string `json:"item_type,omitempty" yaml:"item_type,omitempty"`

	// Venue is the journal or proceedings title.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

var pmidPattern = regexp.MustCompile(`PMID:\s*(\d+)`)

// ParsePMID extracts the digits following a "PMID:" marker in free text.
func ParsePMID(extra string) string {
	if m := pmidPattern.FindStringSubmatch(extra); m != nil {
		return m[1]
	}
	return ""
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// Year returns the first four-digit year found in Date, or "".
func (it Item) Year() string {
	if m := yearPattern.FindStringSubmatch(it.Date); m != nil {
		return m[1]
	}
	return ""
}

// FirstAuthor returns the first creator whose role is author.
func (it Item) FirstAuthor() (Creator, bool) {
	for _, c := range it.Creators {
		if strings.EqualFold(c.Role, RoleAuthor) {
			return c, true
		}
	}
	return Creator{}, false
}

// CacheKey is the DOI if present, otherwise the title. An empty key means
// there is nothing to cache or resolve on.
func (it Item) CacheKey() string {
	if doi := strings.TrimSpace(it.DOI); doi != "" {
		return doi
	}
	return strings.TrimSpace(it.Title)
}

// HasTags reports whether the item already carries at least one tag.
func (it Item) HasTags() bool {
	return len(it.Tags) > 0
}
