// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"html/template"
	"time"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/polychat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page with embedded CSS. Message bodies
// are rendered as Markdown with raw HTML dropped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

type htmlMessage struct {
	Speaker string
	Class   string
	Time    string
	Body    template.HTML
	Files   []string
	Model   string
}

type htmlPage struct {
	Title    string
	Mentor   string
	ID       string
	Exported string
	Meta     bool
	Messages []htmlMessage
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta name="generator" content="polychat">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 820px; margin: 2rem auto; padding: 0 1rem; background: #1e1e2e; color: #cdd6f4; }
header { border-bottom: 1px solid #45475a; margin-bottom: 1.5rem; }
.meta { color: #a6adc8; font-size: 0.9rem; }
.msg { border-left: 3px solid #cba6f7; padding: 0.5rem 1rem; margin: 1rem 0; }
.msg.user { border-color: #89dceb; }
.who { font-weight: bold; }
.time, .model, .file { color: #a6adc8; font-size: 0.85rem; }
pre { background: #181825; padding: 0.75rem; overflow-x: auto; }
code { font-family: ui-monospace, monospace; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
{{if .Meta}}<p class="meta">Mentor: {{.Mentor}} &middot; Conversation {{.ID}} &middot; Exported {{.Exported}}</p>{{end}}
</header>
{{range .Messages}}<section class="msg {{.Class}}">
<div><span class="who">{{.Speaker}}</span>{{if .Time}} <span class="time">{{.Time}}</span>{{end}}</div>
{{.Body}}
{{range .Files}}<div class="file">attached: {{.}}</div>
{{end}}{{if .Model}}<div class="model">model: {{.Model}}</div>
{{end}}</section>
{{end}}</body>
</html>
`))

// Export implements Exporter.
func (e *HTMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	page := htmlPage{
		Title:    t.DisplayTitle(),
		Mentor:   speaker(model.HistoryItem{Mentor: t.MentorID}),
		ID:       t.ConversationID,
		Exported: t.ExportedAt.Format(time.RFC3339),
		Meta:     e.options.IncludeMetadata,
	}
	for _, m := range t.Messages {
		body, err := e.render(m.Content)
		if err != nil {
			return nil, err
		}
		hm := htmlMessage{Speaker: speaker(m), Class: string(m.Role), Body: body}
		if e.options.IncludeTimestamps && !m.CreatedAt.IsZero() {
			hm.Time = formatShortTimestamp(m.CreatedAt)
		}
		if e.options.IncludeMetadata {
			hm.Model = m.Model
		}
		for _, f := range m.Files {
			hm.Files = append(hm.Files, f.Name)
		}
		page.Messages = append(page.Messages, hm)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, errors.Wrap(err, "render html")
	}
	return buf.Bytes(), nil
}

// render converts Markdown to HTML. goldmark omits raw HTML unless the
// unsafe renderer option is set, so model output cannot inject markup.
func (e *HTMLExporter) render(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(content), &buf); err != nil {
		return "", errors.Wrap(err, "render markdown")
	}
	return template.HTML(buf.String()), nil
}

// FileExtension implements Exporter.
func (e *HTMLExporter) FileExtension() string { return ".html" }

// MimeType implements Exporter.
func (e *HTMLExporter) MimeType() string { return "text/html" }
