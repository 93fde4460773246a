// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ai

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/autotagger/pkg/types"
)

// tagPromptTmpl asks for bare keyword lines so the reply can be parsed
// without a JSON contract.
var tagPromptTmpl = template.Must(template.New("tags").Parse(`You are a research librarian assigning subject tags to a bibliographic record. Suggest between 5 and 10 concise keywords or short phrases that describe the topics, methods and subject area of the work.

Respond with one keyword per line. Do not number the lines, add bullets, or include any commentary.

Title: {{.Title}}
{{- if .Authors}}
Authors: {{.Authors}}{{end}}
{{- if .ItemType}}
Type: {{.ItemType}}{{end}}
{{- if .Venue}}
Published in: {{.Venue}}{{end}}
{{- if .Date}}
Date: {{.Date}}{{end}}
{{- if .Abstract}}

Abstract:
{{.Abstract}}{{end}}
`))

type promptData struct {
	Title    string
	Authors  string
	ItemType string
	Venue    string
	Date     string
	Abstract string
}

// RenderPrompt executes the tag prompt template for item.
func RenderPrompt(item types.Item) (string, error) {
	var names []string
	for _, c := range item.Creators {
		name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
		if name != "" {
			names = append(names, name)
		}
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "(untitled)"
	}

	var buf bytes.Buffer
	err := tagPromptTmpl.Execute(&buf, promptData{
		Title:    title,
		Authors:  strings.Join(names, ", "),
		ItemType: item.ItemType,
		Venue:    item.Venue,
		Date:     item.Date,
		Abstract: strings.TrimSpace(item.Abstract),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
