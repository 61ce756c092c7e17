package llm

import (
	"fmt"
	"strings"
	"text/template"
)

// baseFuncs are available to every prompt; callers may add or shadow them.
var baseFuncs = template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
}

// PromptTemplate is a parsed system or user prompt. Referencing a missing map
// key while rendering is an error rather than "<no value>".
type PromptTemplate struct {
	tmpl *template.Template
}

// ParsePromptTemplate parses body under name with the base functions plus funcs.
func ParsePromptTemplate(name, body string, funcs template.FuncMap) (*PromptTemplate, error) {
	tmpl := template.New(name).Option("missingkey=error").Funcs(baseFuncs)
	if len(funcs) > 0 {
		tmpl = tmpl.Funcs(funcs)
	}
	if _, err := tmpl.Parse(body); err != nil {
		return nil, fmt.Errorf("parse prompt %q: %w", name, err)
	}
	return &PromptTemplate{tmpl: tmpl}, nil
}

// Render executes the prompt against data.
func (p *PromptTemplate) Render(data any) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", p.tmpl.Name(), err)
	}
	return b.String(), nil
}
