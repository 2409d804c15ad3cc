// Package rendering turns documents into styled HTML and PDF output.
package rendering

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/jonathan/resume-chat/internal/document"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateNames lists the available layout templates.
var TemplateNames = []string{"modern", "classic"}

// DefaultTemplate is used when the caller does not pick a layout.
const DefaultTemplate = "modern"

// Renderer executes layout templates against documents.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded layout templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("layouts").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, &TemplateError{Template: "layouts", Cause: err}
	}
	return &Renderer{templates: tmpl}, nil
}

// HTML renders a document with the named layout template.
func (r *Renderer) HTML(doc *document.Document, name string) (string, error) {
	if name == "" {
		name = DefaultTemplate
	}
	if !ValidTemplate(name) {
		return "", &TemplateError{Template: name, Cause: fmt.Errorf("unknown template")}
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name+".html", doc); err != nil {
		return "", &TemplateError{Template: name, Cause: err}
	}
	return buf.String(), nil
}

// ValidTemplate reports whether name is a known layout.
func ValidTemplate(name string) bool {
	for _, t := range TemplateNames {
		if t == name {
			return true
		}
	}
	return false
}
