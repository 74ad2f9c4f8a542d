package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/user/booknotes/internal/model"
)

// errNotFound marks an unknown route.
var errNotFound = errors.New("page not found")

// statusFor maps an error to the response status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, model.ErrInvalidSortOrder):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrBookNotFound),
		errors.Is(err, model.ErrNoteNotFound),
		errors.Is(err, errNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err once and renders the error page. It never redirects.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("request_id", requestIDFrom(r.Context())),
		slog.Any("err", err),
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed", attrs...)
		msg = "Something went wrong while talking to the journal. Nothing was changed."
	} else {
		s.log.WarnContext(r.Context(), "request rejected", attrs...)
	}

	s.render(w, r, status, "error.html", page{
		Title:      fmt.Sprintf("%d", status),
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    msg,
	})
}
