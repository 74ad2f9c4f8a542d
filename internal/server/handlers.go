package server

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/user/booknotes/internal/model"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	order, err := resolveSort(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	books, err := s.journal.List(r.Context(), order)
	if err != nil {
		s.fail(w, r, fmt.Errorf("list books: %w", err))
		return
	}
	s.render(w, r, http.StatusOK, "index.html", page{
		Title: "Journal",
		Sort:  order.String(),
		Books: books,
	})
}

// handleSortBy remembers order for this browser and returns to the list.
func (s *Server) handleSortBy(order model.SortOrder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setSortCookie(w, order)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "edit.html", page{Title: "Add a book", Action: "/add"})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	b, err := parseBookForm(r, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	added, err := s.journal.Add(r.Context(), b)
	if err != nil {
		s.fail(w, r, fmt.Errorf("add book: %w", err))
		return
	}
	s.log.InfoContext(r.Context(), "book added", slog.Int64("id", added.ID), slog.String("title", added.Title))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r, "editBookId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.journal.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, fmt.Errorf("edit book %d: %w", id, err))
		return
	}
	s.render(w, r, http.StatusOK, "edit.html", page{
		Title:  "Edit " + b.Title,
		Action: "/update",
		Book:   b,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	b, err := parseBookForm(r, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.journal.Update(r.Context(), b); err != nil {
		s.fail(w, r, fmt.Errorf("update book %d: %w", b.ID, err))
		return
	}
	s.log.InfoContext(r.Context(), "book updated", slog.Int64("id", b.ID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r, "deleteBookId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted, err := s.journal.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, fmt.Errorf("delete book %d: %w", id, err))
		return
	}
	s.log.InfoContext(r.Context(), "book deleted", slog.Int64("id", id), slog.String("title", deleted.Title))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleNotes sends a book's note file as a text download. The book is
// chosen by bookNoteId, or by bookNoteTitle when no id is posted.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", model.ErrInvalidInput, err))
		return
	}
	ctx := r.Context()

	var b *model.Book
	var err error
	if r.PostForm.Get("bookNoteId") != "" {
		var id int64
		if id, err = formID(r, "bookNoteId"); err == nil {
			b, err = s.journal.Get(ctx, id)
		}
	} else if title := strings.TrimSpace(r.PostForm.Get("bookNoteTitle")); title != "" {
		b, err = s.journal.FindByTitle(ctx, title)
	} else {
		err = fmt.Errorf("%w: bookNoteId or bookNoteTitle is required", model.ErrInvalidInput)
	}
	if err != nil {
		s.fail(w, r, fmt.Errorf("notes: %w", err))
		return
	}

	notes, err := s.journal.ReadNotes(ctx, b.ID)
	if err != nil {
		s.fail(w, r, fmt.Errorf("notes for book %d: %w", b.ID, err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": b.Title + ".txt",
	}))
	http.ServeContent(w, r, "", time.Time{}, strings.NewReader(notes))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	ctx := r.Context()
	n, err := s.journal.Count(ctx)
	if err == nil {
		err = s.journal.Ping(ctx)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "health check failed", slog.Any("err", err))
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "unavailable")
		return
	}
	fmt.Fprintf(w, "ok books=%d\n", n)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, fmt.Errorf("%w: %s %s", errNotFound, r.Method, r.URL.Path))
}

// parseBookForm builds a Book from the add/update form. withID requires the
// hidden id field.
func parseBookForm(r *http.Request, withID bool) (*model.Book, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	f := r.PostForm

	b := &model.Book{
		Title:   strings.TrimSpace(f.Get("title")),
		Author:  strings.TrimSpace(f.Get("author")),
		ISBN:    strings.TrimSpace(f.Get("isbn")),
		Summary: f.Get("summary"),
		Notes:   f.Get("notes"),
	}

	if withID {
		id, err := formID(r, "id")
		if err != nil {
			return nil, err
		}
		b.ID = id
	}

	if raw := strings.TrimSpace(f.Get("rating")); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: rating %q is not a number", model.ErrInvalidInput, raw)
		}
		b.Rating = rating
	}

	d, err := model.ParseDate(f.Get("date_read"))
	if err != nil {
		return nil, err
	}
	b.DateRead = d

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// formID reads a positive integer id from a POST field.
func formID(r *http.Request, field string) (int64, error) {
	raw := strings.TrimSpace(r.PostFormValue(field))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %s %q is not a valid id", model.ErrInvalidInput, field, raw)
	}
	return id, nil
}
