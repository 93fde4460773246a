// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// minKeywordsBeforeMinorMeSH is the keyword count below which descriptors
// that are not major topics still pad the result.
const minKeywordsBeforeMinorMeSH = 5

// PubMed efetch XML structures.
type articleSet struct {
	Articles []article `xml:"PubmedArticle"`
}

type article struct {
	Citation citation `xml:"MedlineCitation"`
}

type citation struct {
	PMID         string        `xml:"PMID"`
	KeywordLists []keywordList `xml:"KeywordList"`
	MeshHeadings []meshHeading `xml:"MeshHeadingList>MeshHeading"`
}

type keywordList struct {
	Keywords []meshName `xml:"Keyword"`
}

type meshHeading struct {
	Descriptor meshName   `xml:"DescriptorName"`
	Qualifiers []meshName `xml:"QualifierName"`
}

type meshName struct {
	Text       string `xml:",chardata"`
	MajorTopic string `xml:"MajorTopicYN,attr"`
}

func (n meshName) major() bool {
	return strings.EqualFold(n.MajorTopic, "Y")
}

// collector accumulates keywords in discovery order, dropping exact duplicates.
type collector struct {
	seen map[string]bool
	out  []string
}

func (c *collector) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" || c.seen[s] {
		return
	}
	c.seen[s] = true
	c.out = append(c.out, s)
}

// ExtractKeywords parses an efetch XML payload and returns, in order: author
// keywords verbatim; MeSH descriptors (major topics always, others only
// while fewer than five keywords have been collected); and a
// "descriptor/qualifier" term for each major-topic qualifier. Duplicates
// are removed by exact match and the result is truncated to max.
func ExtractKeywords(payload []byte, max int) ([]string, error) {
	var set articleSet
	if err := xml.Unmarshal(payload, &set); err != nil {
		return nil, fmt.Errorf("parsing efetch XML: %w", err)
	}
	if len(set.Articles) == 0 {
		return nil, nil
	}
	cit := set.Articles[0].Citation

	c := &collector{seen: make(map[string]bool)}

	for _, list := range cit.KeywordLists {
		for _, kw := range list.Keywords {
			c.add(kw.Text)
		}
	}

	for _, h := range cit.MeshHeadings {
		descriptor := strings.TrimSpace(h.Descriptor.Text)
		if descriptor == "" {
			continue
		}
		if h.Descriptor.major() || len(c.out) < minKeywordsBeforeMinorMeSH {
			c.add(descriptor)
		}
		for _, q := range h.Qualifiers {
			if q.major() && strings.TrimSpace(q.Text) != "" {
				c.add(descriptor + "/" + strings.TrimSpace(q.Text))
			}
		}
	}

	if max > 0 && len(c.out) > max {
		c.out = c.out[:max]
	}
	return c.out, nil
}
