package api

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/labstack/echo/v4"

	"taskweb/domain"
	"taskweb/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home", "login", "register", "dashboard", "tasks", "notes", "not_found"}

// Renderer renders the HTML pages. Each page is parsed together with the
// shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded page templates.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"date": func(layout string, t any) string {
			switch v := t.(type) {
			case *time.Time:
				if v == nil {
					return ""
				}
				return v.Format(layout)
			case time.Time:
				return v.Format(layout)
			default:
				return ""
			}
		},
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

// page is the data every template receives.
type page struct {
	Title   string
	User    *domain.Identity
	Flashes []session.Flash
	CSRF    string
	Data    any
}

// render pops the session flashes into the page and writes it.
func render(c echo.Context, status int, name, title string, data any) error {
	sess := sessionFrom(c)
	p := page{
		Title:   title,
		Flashes: sess.PopFlashes(),
		Data:    data,
	}
	if sess.Authenticated() {
		p.User = sess.User
	}
	if token, ok := c.Get(csrfContextKey).(string); ok {
		p.CSRF = token
	}
	return c.Render(status, name, p)
}
