package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/booknotes/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = []string{"index.html", "edit.html", "error.html"}

// page is the data every template receives.
type page struct {
	Title     string
	RequestID string

	// index
	Sort  string
	Books []*model.Book

	// edit
	Action string
	Book   *model.Book

	// error
	Status     int
	StatusText string
	Message    string
}

type views struct {
	byName map[string]*template.Template
}

var funcs = template.FuncMap{
	"formatDate": model.FormatDate,
	"rating": func(r float64) string {
		return strconv.FormatFloat(r, 'f', -1, 64)
	},
}

func loadViews() (*views, error) {
	v := &views{byName: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v.byName[name] = t
	}
	return v, nil
}

// render executes into a buffer so a template failure never leaves a
// half-written 200 behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	data.RequestID = requestIDFrom(r.Context())

	var buf bytes.Buffer
	err := fmt.Errorf("unknown template %q", name)
	if t, ok := s.views.byName[name]; ok {
		err = t.ExecuteTemplate(&buf, name, data)
	}
	if err != nil {
		if name == "error.html" {
			s.log.ErrorContext(r.Context(), "render error page", slog.Any("err", err))
			http.Error(w, http.StatusText(status), status)
			return
		}
		s.fail(w, r, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
