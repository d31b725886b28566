package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"path"

	"finitefield.org/seed-web/internal/navigator"
	"finitefield.org/seed-web/internal/seo"
)

//go:embed templates/*.html
var templateFS embed.FS

// Section is the strain-tree block of the storefront page.
type Section struct {
	Enabled     bool
	Title       string
	Description string
}

// Site carries page level metadata.
type Site struct {
	Title string
}

// Routes are the endpoints the page's controls call.
type Routes struct {
	Tree        string
	ExpandAll   string
	CollapseAll string
}

// PageData is the input of the storefront shell.
type PageData struct {
	Lang      string
	Site      Site
	Meta      seo.Meta
	JSONLD    []template.JS
	Section   Section
	Options   navigator.Options
	Routes    Routes
	Height    int
	CSRFToken string
}

// Translator resolves UI strings.
type Translator interface {
	T(lang, key string) string
}

// Pages renders the storefront shell.
type Pages struct {
	tmpl *template.Template
	tr   Translator
}

// NewPages parses the embedded templates. assetBase prefixes static asset
// paths.
func NewPages(tr Translator, assetBase string) (*Pages, error) {
	if assetBase == "" {
		assetBase = "/assets"
	}
	funcs := template.FuncMap{
		"asset": func(name string) string { return path.Join(assetBase, name) },
		"t":     func(key string) string { return key },
	}
	tmpl, err := template.New("_root").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Pages{tmpl: tmpl, tr: tr}, nil
}

// Page writes the full storefront page.
func (p *Pages) Page(w io.Writer, data PageData) error {
	tmpl, err := p.tmpl.Clone()
	if err != nil {
		return err
	}
	lang := data.Lang
	tmpl.Funcs(template.FuncMap{
		"t": func(key string) string {
			if p.tr == nil {
				return key
			}
			return p.tr.T(lang, key)
		},
	})
	return tmpl.ExecuteTemplate(w, "page", data)
}
