// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tagproc turns candidate tags into the final tag set: normalised,
// synonym-mapped, blacklist-filtered, deduplicated and capped. It also
// suggests existing tags that are near-misses of a new one.
package tagproc

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/autotagger/pkg/types"
)

const (
	// DefaultMaxTags applies when the configuration leaves MaxTags unset.
	DefaultMaxTags = 10

	// MaxSuggestDistance is the largest edit distance SuggestSimilar accepts.
	MaxSuggestDistance = 2
)

// Processor holds the synonym map and blacklist loaded from one
// configuration. It is read-only after New and safe for concurrent use.
type Processor struct {
	maxTags   int
	titleCase bool
	synonyms  map[string]string
	blacklist map[string]bool
}

// New builds a Processor from cfg. Synonym chains (a to b, b to c) are
// resolved so every source maps straight to its final term, and each
// final term maps to itself so processed output is stable under
// reprocessing.
func New(cfg types.ProcessorConfig) *Processor {
	p := &Processor{
		maxTags:   cfg.MaxTags,
		titleCase: cfg.TitleCase,
		synonyms:  make(map[string]string),
		blacklist: make(map[string]bool),
	}
	if p.maxTags <= 0 {
		p.maxTags = DefaultMaxTags
	}

	direct := make(map[string]string, len(cfg.Synonyms))
	for _, s := range cfg.Synonyms {
		from := strings.ToLower(clean(s.From))
		to := clean(s.To)
		if from == "" || to == "" {
			continue
		}
		direct[from] = to
	}
	// Targets that differ only in case share the casing listed first.
	canonical := make(map[string]string)
	for _, s := range cfg.Synonyms {
		from := strings.ToLower(clean(s.From))
		if _, ok := direct[from]; !ok {
			continue
		}
		to := resolve(direct, from)
		key := strings.ToLower(to)
		if _, ok := canonical[key]; !ok {
			canonical[key] = to
		}
		p.synonyms[from] = canonical[key]
	}
	for key, to := range canonical {
		if _, ok := p.synonyms[key]; !ok {
			p.synonyms[key] = to
		}
	}

	for _, b := range cfg.Blacklist {
		if key := strings.ToLower(clean(b)); key != "" {
			p.blacklist[key] = true
		}
	}
	return p
}

// resolve follows the synonym chain starting at from and returns the last
// term reached before the chain ends or loops.
func resolve(direct map[string]string, from string) string {
	seen := map[string]bool{from: true}
	to := direct[from]
	for {
		next, ok := direct[strings.ToLower(to)]
		if !ok || seen[strings.ToLower(to)] {
			return to
		}
		seen[strings.ToLower(to)] = true
		to = next
	}
}

// Process runs the full pipeline over raw tags, in order: normalise,
// substitute synonyms, drop blacklisted terms, deduplicate
// case-insensitively keeping the first casing, and truncate.
func (p *Processor) Process(raw []string) []string {
	var caser cases.Caser
	if p.titleCase {
		caser = cases.Title(language.English, cases.NoLower)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, min(len(raw), p.maxTags))
	for _, tag := range raw {
		tag = clean(tag)
		if tag == "" {
			continue
		}
		if p.titleCase {
			tag = caser.String(tag)
		}

		if canonical, ok := p.synonyms[strings.ToLower(tag)]; ok {
			tag = canonical
		}

		key := strings.ToLower(tag)
		if p.blacklist[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
		if len(out) == p.maxTags {
			break
		}
	}
	return out
}

// clean applies NFC, strips non-word runes from both ends, and collapses
// internal whitespace to single spaces.
func clean(s string) string {
	s = norm.NFC.String(s)
	s = strings.TrimFunc(s, func(r rune) bool { return !isWordRune(r) })
	return strings.Join(strings.Fields(s), " ")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// SuggestSimilar returns the existing tags within edit distance 2 of tag,
// compared case-insensitively, closest first. Equal distances keep the
// order of existing.
func SuggestSimilar(tag string, existing []string) []string {
	type match struct {
		tag  string
		dist int
	}
	target := strings.ToLower(tag)

	var matches []match
	for _, e := range existing {
		if d := Distance(target, strings.ToLower(e)); d <= MaxSuggestDistance {
			matches = append(matches, match{tag: e, dist: d})
		}
	}
	slices.SortStableFunc(matches, func(a, b match) int { return a.dist - b.dist })

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.tag
	}
	return out
}

// Distance is the Levenshtein distance between a and b over runes, with
// unit cost for insertion, deletion and substitution.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
