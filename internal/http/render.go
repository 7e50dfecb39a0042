package httpserver

import (
	"bytes"
	"embed"
	"html/template"
	"math"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = parsePages("homepage", "movies", "movie_details", "users", "user_details", "error")

var templateFuncs = template.FuncMap{
	"deref": func(v any) any {
		switch p := v.(type) {
		case *string:
			if p != nil {
				return *p
			}
		case *int:
			if p != nil {
				return *p
			}
		}
		return ""
	},
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("January 2, 2006")
	},
}

func parsePages(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
	}
	return out
}

// pageData is what every template sees.
type pageData struct {
	Title        string
	CurrentEmail string
	Flashes      []string
	Content      any
}

// render pops pending flashes and writes the named page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any) {
	// Session failures end in a bare 500; rendering the error page would need
	// the same session again.
	email, err := s.sessions.CurrentEmail(r)
	if err != nil {
		s.sessionFailure(w, err)
		return
	}
	flashes, err := s.sessions.Flashes(w, r)
	if err != nil {
		s.sessionFailure(w, err)
		return
	}
	data := pageData{
		Title:        title,
		CurrentEmail: email,
		Flashes:      flashes,
		Content:      content,
	}

	var buf bytes.Buffer
	if err := pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.Printf("render %s: %v", page, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error", "Not found", "We could not find that page.")
}

func (s *Server) renderServerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Printf("%s error: %v", op, err)
	s.render(w, r, http.StatusInternalServerError, "error", "Something went wrong", "Please try again later.")
}

// redirectWithFlash queues msg and sends the browser to target.
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, target, msg string) {
	if err := s.sessions.AddFlash(w, r, msg); err != nil {
		s.sessionFailure(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) sessionFailure(w http.ResponseWriter, err error) {
	s.logger.Printf("session error: %v", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func roundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
