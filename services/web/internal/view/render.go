// Package view renders the web front's HTML from view-models.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoginPage is the login/registration screen.
type LoginPage struct {
	Register   bool
	AllowGuest bool
	Error      string
	Success    string
	Email      string
	Name       string
	RememberMe bool
}

// ConfirmPage asks the user to confirm a destructive action by re-posting
// Fields with confirm=yes to Action.
type ConfirmPage struct {
	Title   string
	Message string
	Action  string
	Fields  map[string]string
}

type InfoPage struct {
	Title   string
	Message string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page template against the shared layout.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{"login", "app", "confirm", "info"} {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

func (r *Renderer) RenderLogin(w io.Writer, page LoginPage) error {
	return r.render(w, "login", page)
}

func (r *Renderer) RenderApp(w io.Writer, page AppPage) error {
	return r.render(w, "app", page)
}

func (r *Renderer) RenderConfirm(w io.Writer, page ConfirmPage) error {
	return r.render(w, "confirm", page)
}

func (r *Renderer) RenderInfo(w io.Writer, page InfoPage) error {
	return r.render(w, "info", page)
}

// render buffers the output so a template failure never leaves a half-written page.
func (r *Renderer) render(w io.Writer, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
