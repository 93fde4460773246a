// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/autotagger/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form,
// read from and written to both CSL-YAML and CSL-JSON.
type CSLItem struct {
	ID             string    `json:"id" yaml:"id"`
	Type           string    `json:"type,omitempty" yaml:"type,omitempty"`
	Title          string    `json:"title,omitempty" yaml:"title,omitempty"`
	Author         []CSLName `json:"author,omitempty" yaml:"author,omitempty"`
	Editor         []CSLName `json:"editor,omitempty" yaml:"editor,omitempty"`
	Abstract       string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	ContainerTitle string    `json:"container-title,omitempty" yaml:"container-title,omitempty"`
	Issued         *CSLDate  `json:"issued,omitempty" yaml:"issued,omitempty"`
	DOI            string    `json:"DOI,omitempty" yaml:"DOI,omitempty"`
	PMID           string    `json:"PMID,omitempty" yaml:"PMID,omitempty"`
	Note           string    `json:"note,omitempty" yaml:"note,omitempty"`

	// Keyword is CSL's comma-separated tag list.
	Keyword string `json:"keyword,omitempty" yaml:"keyword,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `json:"family,omitempty" yaml:"family,omitempty"`
	Given   string `json:"given,omitempty" yaml:"given,omitempty"`
	Literal string `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// CSLDate is a CSL date: structured date-parts, or free text.
type CSLDate struct {
	DateParts [][]datePart `json:"date-parts,omitempty" yaml:"date-parts,omitempty"`
	Raw       string       `json:"raw,omitempty" yaml:"raw,omitempty"`
	Literal   string       `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// datePart accepts both 2021 and "2021", which CSL-JSON exporters mix.
type datePart int

func (d *datePart) UnmarshalYAML(node *yaml.Node) error {
	n, err := strconv.Atoi(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("date part %q: %w", node.Value, err)
	}
	*d = datePart(n)
	return nil
}

func (d *datePart) UnmarshalJSON(b []byte) error {
	n, err := strconv.Atoi(strings.Trim(string(b), `"`))
	if err != nil {
		return fmt.Errorf("date part %s: %w", b, err)
	}
	*d = datePart(n)
	return nil
}

// Format names for Export.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ReadCSL decodes a CSL-YAML or CSL-JSON list (a single object is also
// accepted) into items.
func ReadCSL(r io.Reader) ([]types.Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading CSL input: %w", err)
	}

	unmarshal := yaml.Unmarshal
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		unmarshal = json.Unmarshal
	}

	var list []CSLItem
	if err := unmarshal(data, &list); err != nil {
		var single CSLItem
		if err2 := unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("parsing CSL: %w", err)
		}
		list = []CSLItem{single}
	}

	items := make([]types.Item, 0, len(list))
	for _, c := range list {
		items = append(items, c.toItem())
	}
	return items, nil
}

// WriteCSL encodes items as a CSL list in format (yaml or json), with each
// item's tags in the keyword field.
func WriteCSL(w io.Writer, items []types.Item, format string) error {
	list := make([]CSLItem, len(items))
	for i, it := range items {
		list[i] = fromItem(it)
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(list)
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
}

func (c CSLItem) toItem() types.Item {
	item := types.Item{
		ID:       strings.TrimSpace(c.ID),
		ItemType: c.Type,
		Title:    strings.TrimSpace(c.Title),
		Abstract: c.Abstract,
		DOI:      strings.TrimSpace(c.DOI),
		Extra:    c.Note,
		Venue:    c.ContainerTitle,
		Date:     c.Issued.String(),
		PMIDHint: types.ParsePMID(c.Note),
	}
	if item.PMIDHint == "" {
		item.PMIDHint = strings.TrimSpace(c.PMID)
	}

	for _, n := range c.Author {
		item.Creators = append(item.Creators, n.toCreator(types.RoleAuthor))
	}
	for _, n := range c.Editor {
		item.Creators = append(item.Creators, n.toCreator(types.RoleEditor))
	}

	for _, kw := range strings.Split(c.Keyword, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			item.Tags = append(item.Tags, kw)
		}
	}
	return item
}

func fromItem(it types.Item) CSLItem {
	c := CSLItem{
		ID:             it.ID,
		Type:           it.ItemType,
		Title:          it.Title,
		Abstract:       it.Abstract,
		ContainerTitle: it.Venue,
		DOI:            it.DOI,
		PMID:           it.PMIDHint,
		Note:           it.Extra,
		Keyword:        strings.Join(it.Tags, ", "),
	}
	if c.Type == "" {
		c.Type = "article-journal"
	}
	if it.Date != "" {
		c.Issued = &CSLDate{Raw: it.Date}
	}
	for _, cr := range it.Creators {
		name := CSLName{Family: cr.LastName, Given: cr.FirstName}
		if cr.FirstName == "" {
			name = CSLName{Literal: cr.LastName}
		}
		if cr.Role == types.RoleEditor {
			c.Editor = append(c.Editor, name)
		} else {
			c.Author = append(c.Author, name)
		}
	}
	return c
}

func (n CSLName) toCreator(role string) types.Creator {
	if n.Family == "" && n.Given == "" {
		return types.Creator{LastName: strings.TrimSpace(n.Literal), Role: role}
	}
	return types.Creator{
		FirstName: strings.TrimSpace(n.Given),
		LastName:  strings.TrimSpace(n.Family),
		Role:      role,
	}
}

// String renders the date as YYYY, YYYY-MM or YYYY-MM-DD, falling back to
// the raw or literal text.
func (d *CSLDate) String() string {
	if d == nil {
		return ""
	}
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		p := d.DateParts[0]
		s := fmt.Sprintf("%04d", p[0])
		for _, part := range p[1:min(len(p), 3)] {
			s += fmt.Sprintf("-%02d", part)
		}
		return s
	}
	if d.Raw != "" {
		return d.Raw
	}
	return d.Literal
}
