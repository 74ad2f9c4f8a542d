package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/booknotes/internal/config"
	"github.com/user/booknotes/internal/model"
	"github.com/user/booknotes/internal/storage"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStore(context.Background(), storage.Options{
		Driver:   config.DriverCGO,
		DBPath:   filepath.Join(dir, "booknotes.db"),
		NotesDir: filepath.Join(dir, "notes"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestHandler(t *testing.T, j storage.Journal, rl config.RateLimit) http.Handler {
	t.Helper()
	srv, err := New(j, Options{RateLimit: rl, Logger: quietLogger})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv.Handler()
}

func addBook(t *testing.T, s *storage.Store, title, read string, rating float64) *model.Book {
	t.Helper()
	d, err := model.ParseDate(read)
	require.NoError(t, err)
	b, err := s.Add(context.Background(), &model.Book{
		Title:    title,
		Author:   "Author of " + title,
		DateRead: d,
		Rating:   rating,
		Notes:    "Notes on " + title,
	})
	require.NoError(t, err)
	return b
}

func get(h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// titleOrder returns titles in the order they appear in body.
func titleOrder(t *testing.T, body string, titles ...string) []string {
	t.Helper()
	type pos struct {
		title string
		at    int
	}
	var found []pos
	for _, title := range titles {
		at := strings.Index(body, "<h2>"+title+"</h2>")
		require.GreaterOrEqual(t, at, 0, "title %q not rendered", title)
		found = append(found, pos{title, at})
	}
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].at < found[j-1].at; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}
	out := make([]string, len(found))
	for i, p := range found {
		out[i] = p.title
	}
	return out
}

// failingJournal fails every call with err.
type failingJournal struct {
	err error
}

func (f failingJournal) List(context.Context, model.SortOrder) ([]*model.Book, error) {
	return nil, f.err
}

func (f failingJournal) Get(context.Context, int64) (*model.Book, error) {
	return nil, f.err
}

func (f failingJournal) FindByTitle(context.Context, string) (*model.Book, error) {
	return nil, f.err
}

func (f failingJournal) Count(context.Context) (int, error) {
	return 0, f.err
}

func (f failingJournal) ReadNotes(context.Context, int64) (string, error) {
	return "", f.err
}

func (f failingJournal) Add(context.Context, *model.Book) (*model.Book, error) {
	return nil, f.err
}

func (f failingJournal) Update(context.Context, *model.Book) error {
	return f.err
}

func (f failingJournal) Delete(context.Context, int64) (*model.Book, error) {
	return nil, f.err
}

func (f failingJournal) Ping(context.Context) error {
	return f.err
}
