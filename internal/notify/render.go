package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*
var templatesFS embed.FS

// Rendered is a notification ready to be mailed.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

var funcs = map[string]interface{}{
	// when renders an RFC3339 timestamp as "Mon, 02 Jan 2006 (in 3 days)".
	"when": func(s string) string {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return s
		}
		return fmt.Sprintf("%s (%s)", t.UTC().Format("Mon, 02 Jan 2006 15:04 MST"), humanize.Time(t))
	},
	"roleName": func(s string) string {
		switch s {
		case "agency_admin", "supplier_admin":
			return "an administrator"
		case "agency_member", "supplier_member":
			return "a team member"
		}
		return "a member"
	},
}

var (
	textTemplates = texttemplate.Must(texttemplate.New("text").Funcs(funcs).
			ParseFS(templatesFS, "templates/*.subject.tmpl", "templates/*.txt.tmpl"))
	htmlTemplates = htmltemplate.Must(htmltemplate.New("html").Funcs(funcs).
			ParseFS(templatesFS, "templates/*.html.tmpl"))
)

// Render executes the subject, text and HTML templates of kind with params.
func Render(kind Kind, params map[string]string) (*Rendered, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
	if params == nil {
		params = map[string]string{}
	}
	var subject, text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&subject, string(kind)+".subject.tmpl", params); err != nil {
		return nil, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, string(kind)+".txt.tmpl", params); err != nil {
		return nil, fmt.Errorf("render %s text: %w", kind, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, string(kind)+".html.tmpl", params); err != nil {
		return nil, fmt.Errorf("render %s html: %w", kind, err)
	}
	return &Rendered{
		Subject: string(bytes.TrimSpace(subject.Bytes())),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
