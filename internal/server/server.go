// Package server implements the booknotes web interface.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/user/booknotes/internal/config"
	"github.com/user/booknotes/internal/model"
	"github.com/user/booknotes/internal/storage"
)

// maxFormBytes bounds POST bodies; notes are the only large field.
const maxFormBytes = 4 << 20

// Options configures a Server.
type Options struct {
	RateLimit config.RateLimit
	Logger    *slog.Logger
}

// Server routes journal requests to a storage.Journal.
type Server struct {
	journal storage.Journal
	views   *views
	limiter *limiter
	log     *slog.Logger
}

// New creates a Server backed by journal.
func New(journal storage.Journal, opts Options) (*Server, error) {
	v, err := loadViews()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{journal: journal, views: v, log: log}
	if opts.RateLimit.Enabled() {
		s.limiter = newLimiter(opts.RateLimit.Requests, opts.RateLimit.Window(), opts.RateLimit.Burst)
	}
	return s, nil
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /rating", s.handleSortBy(model.ByRating))
	mux.HandleFunc("GET /recency", s.handleSortBy(model.ByDate))
	mux.HandleFunc("GET /new", s.handleNew)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /static/", staticHandler())

	mux.Handle("POST /add", s.limit(s.handleAdd))
	mux.Handle("POST /edit", s.limit(s.handleEdit))
	mux.Handle("POST /update", s.limit(s.handleUpdate))
	mux.Handle("POST /delete", s.limit(s.handleDelete))
	mux.Handle("POST /notes", s.limit(s.handleNotes))

	mux.HandleFunc("/", s.handleNotFound)

	return s.requestID(s.accessLog(mux))
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}
