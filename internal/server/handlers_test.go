package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/booknotes/internal/config"
	"github.com/user/booknotes/internal/model"
)

func TestAdd_CreatesRowAndMirror(t *testing.T) {
	store := newTestStore(t)
	h := newTestHandler(t, store, config.RateLimit{})

	rec := post(h, "/add", url.Values{
		"title":     {"Dune"},
		"author":    {"Herbert"},
		"isbn":      {"x"},
		"date_read": {"2024-03-02"},
		"rating":    {"9"},
		"summary":   {"s"},
		"notes":     {"Great book"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	books, err := store.List(context.Background(), model.ByID)
	require.NoError(t, err)
	require.Len(t, books, 1)
	b := books[0]
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, "Herbert", b.Author)
	assert.Equal(t, "2024-03-02", b.DateReadString())
	assert.Equal(t, 9.0, b.Rating)
	assert.Equal(t, int64(1709337600000), b.ParsedDate())

	data, err := os.ReadFile(store.Notes().Path(b.ID))
	require.NoError(t, err)
	assert.Equal(t, "Great book", string(data))
}

func TestAdd_BadForm(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"missing title", url.Values{"date_read": {"2024-03-02"}}},
		{"blank title", url.Values{"title": {"  "}, "date_read": {"2024-03-02"}}},
		{"bad date", url.Values{"title": {"Dune"}, "date_read": {"March"}}},
		{"missing date", url.Values{"title": {"Dune"}}},
		{"bad rating", url.Values{"title": {"Dune"}, "date_read": {"2024-03-02"}, "rating": {"ten"}}},
		{"NaN rating", url.Values{"title": {"Dune"}, "date_read": {"2024-03-02"}, "rating": {"NaN"}}},
		{"infinite rating", url.Values{"title": {"Dune"}, "date_read": {"2024-03-02"}, "rating": {"Inf"}}},
		{"negative infinite rating", url.Values{"title": {"Dune"}, "date_read": {"2024-03-02"}, "rating": {"-Inf"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			h := newTestHandler(t, store, config.RateLimit{})

			rec := post(h, "/add", tt.form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, rec.Header().Get("Location"))

			n, err := store.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestAdd_NormalizesLooseDate(t *testing.T) {
	store := newTestStore(t)
	h := newTestHandler(t, store, config.RateLimit{})

	rec := post(h, "/add", url.Values{"title": {"Emma"}, "date_read": {"2023-1-5"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	books, err := store.List(context.Background(), model.ByID)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "2023-01-05", books[0].DateReadString())
	assert.Zero(t, books[0].Rating)
}

func TestIndex_Orders(t *testing.T) {
	store := newTestStore(t)
	addBook(t, store, "Alpha", "2021-06-01", 5)
	addBook(t, store, "Bravo", "2023-01-10", 9)
	addBook(t, store, "Charlie", "2022-02-02", 7)
	h := newTestHandler(t, store, config.RateLimit{})

	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{"Alpha", "Bravo", "Charlie"}},
		{"/?sort=id", []string{"Alpha", "Bravo", "Charlie"}},
		{"/?sort=rating", []string{"Bravo", "Charlie", "Alpha"}},
		{"/?sort=date", []string{"Bravo", "Charlie", "Alpha"}},
		{"/?sort=recency", []string{"Bravo", "Charlie", "Alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(h, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, titleOrder(t, rec.Body.String(), "Alpha", "Bravo", "Charlie"))
		})
	}
}

func TestIndex_InvalidSort(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), config.RateLimit{})

	rec := get(h, "/?sort=title")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndex_Empty(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), config.RateLimit{})

	rec := get(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No books yet")
}

func TestRating_SetsCookie(t *testing.T) {
	store := newTestStore(t)
	addBook(t, store, "Low", "2020-01-01", 2)
	addBook(t, store, "High", "2019-01-01", 10)
	h := newTestHandler(t, store, config.RateLimit{})

	rec := get(h, "/rating")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sortCookie, cookies[0].Name)
	assert.Equal(t, "rating", cookies[0].Value)

	rec = get(h, "/", cookies[0])
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"High", "Low"}, titleOrder(t, rec.Body.String(), "Low", "High"))

	// The query parameter overrides the cookie for one request.
	rec = get(h, "/?sort=id", cookies[0])
	assert.Equal(t, []string{"Low", "High"}, titleOrder(t, rec.Body.String(), "Low", "High"))
}

func TestRecency_SetsCookie(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), config.RateLimit{})

	rec := get(h, "/recency")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "date", cookies[0].Value)
}

func TestSortCookies_AreIndependentPerClient(t *testing.T) {
	store := newTestStore(t)
	addBook(t, store, "Old favourite", "2010-05-05", 10)
	addBook(t, store, "Recent dud", "2024-05-05", 1)
	h := newTestHandler(t, store, config.RateLimit{})

	byRating := &http.Cookie{Name: sortCookie, Value: "rating"}
	byDate := &http.Cookie{Name: sortCookie, Value: "date"}

	a := get(h, "/", byRating)
	b := get(h, "/", byDate)
	c := get(h, "/")

	titles := []string{"Old favourite", "Recent dud"}
	assert.Equal(t, []string{"Old favourite", "Recent dud"}, titleOrder(t, a.Body.String(), titles...))
	assert.Equal(t, []string{"Recent dud", "Old favourite"}, titleOrder(t, b.Body.String(), titles...))
	assert.Equal(t, []string{"Old favourite", "Recent dud"}, titleOrder(t, c.Body.String(), titles...))
}

func TestSortCookie_GarbageIgnored(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), config.RateLimit{})

	rec := get(h, "/", &http.Cookie{Name: sortCookie, Value: "sideways"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEdit_PrefillsForm(t *testing.T) {
	store := newTestStore(t)
	b := addBook(t, store, "Dune", "2024-03-02", 9)
	h := newTestHandler(t, store, config.RateLimit{})

	rec := post(h, "/edit", url.Values{"editBookId": {fmt.Sprint(b.ID)}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="/update"`)
	assert.Contains(t, body, `value="Dune"`)
	assert.Contains(t, body, `value="2024-03-02"`)
	assert.Contains(t, body, "Notes on Dune")
}

func TestEdit_Errors(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), config.RateLimit{})

	assert.Equal(t, http.StatusBadRequest, post(h, "/edit", url.Values{"editBookId": {"abc"}}).Code)
	assert.Equal(t, http.StatusBadRequest, post(h, "/edit", url.Values{"editBookId": {"0"}}).Code)
	assert.Equal(t, http.StatusNotFound, post(h, "/edit", url.Values{"editBookId": {"42"}}).Code)
}

func TestUpdate_RewritesRowAndMirror(t *testing.T) {
	store := newTestStore(t)
	b := addBook(t, store, "Dune", "2024-03-02", 9)
	h := newTestHandler(t, store, config.RateLimit{})

	rec := post(h, "/update", url.Values{
		"id":        {fmt.Sprint(b.ID)},
		"title":     {"Dune Messiah"},
		"author":    {"Herbert"},
		"date_read": {"2024-4-1"},
		"rating":    {"7.5"},
		"notes":     {"Shorter, darker"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	got, err := store.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", got.Title)
	assert.Equal(t, "2024-04-01", got.DateReadString())
	assert.Equal(t, 7.5, got.Rating)

	data, err := os.ReadFile(store.Notes().Path(b.ID))
	require.NoError(t, err)
	assert.Equal(t, "Shorter, darker", string(data))
}

func TestUpdate_MissingBook(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), config.RateLimit{})

	rec := post(h, "/update", url.Values{"id": {"7"}, "title": {"Ghost"}, "date_read": {"2024-01-01"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestDelete_RemovesRowAndMirror(t *testing.T) {
	store := newTestStore(t)
	addBook(t, store, "One", "2024-01-01", 1)
	addBook(t, store, "Two", "2024-01-02", 2)
	foo := addBook(t, store, "Foo", "2024-01-03", 3)
	require.Equal(t, int64(3), foo.ID)
	h := newTestHandler(t, store, config.RateLimit{})

	rec := post(h, "/delete", url.Values{"deleteBookId": {"3"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	_, err := store.Get(context.Background(), 3)
	assert.ErrorIs(t, err, model.ErrBookNotFound)
	_, err = store.Notes().Read(3)
	assert.ErrorIs(t, err, model.ErrNoteNotFound)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec = post(h, "/delete", url.Values{"deleteBookId": {"3"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotes_Download(t *testing.T) {
	store := newTestStore(t)
	b := addBook(t, store, "Dune", "2024-03-02", 9)
	h := newTestHandler(t, store, config.RateLimit{})

	for name, form := range map[string]url.Values{
		"by id":         {"bookNoteId": {fmt.Sprint(b.ID)}},
		"by title":      {"bookNoteTitle": {"Dune"}},
		"id wins":       {"bookNoteId": {fmt.Sprint(b.ID)}, "bookNoteTitle": {"Other"}},
		"trimmed title": {"bookNoteTitle": {"  Dune "}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(h, "/notes", form)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "Notes on Dune", rec.Body.String())
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
			assert.Equal(t, `attachment; filename=Dune.txt`, rec.Header().Get("Content-Disposition"))
		})
	}
}

func TestNotes_RecreatesMissingMirror(t *testing.T) {
	store := newTestStore(t)
	b := addBook(t, store, "Dune", "2024-03-02", 9)
	require.NoError(t, os.Remove(store.Notes().Path(b.ID)))
	h := newTestHandler(t, store, config.RateLimit{})

	rec := post(h, "/notes", url.Values{"bookNoteId": {fmt.Sprint(b.ID)}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Notes on Dune", rec.Body.String())
	assert.FileExists(t, store.Notes().Path(b.ID))
}

func TestNotes_Errors(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), config.RateLimit{})

	assert.Equal(t, http.StatusBadRequest, post(h, "/notes", url.Values{}).Code)
	assert.Equal(t, http.StatusBadRequest, post(h, "/notes", url.Values{"bookNoteId": {"-1"}}).Code)
	assert.Equal(t, http.StatusNotFound, post(h, "/notes", url.Values{"bookNoteId": {"9"}}).Code)
	assert.Equal(t, http.StatusNotFound, post(h, "/notes", url.Values{"bookNoteTitle": {"Nope"}}).Code)
}

func TestFailingStore_NeverRedirects(t *testing.T) {
	h := newTestHandler(t, failingJournal{err: errors.New("disk I/O error")}, config.RateLimit{})

	validBook := url.Values{"id": {"1"}, "title": {"Dune"}, "date_read": {"2024-03-02"}}
	responses := map[string]*httptest.ResponseRecorder{
		"index":  get(h, "/"),
		"add":    post(h, "/add", validBook),
		"update": post(h, "/update", validBook),
		"delete": post(h, "/delete", url.Values{"deleteBookId": {"1"}}),
		"edit":   post(h, "/edit", url.Values{"editBookId": {"1"}}),
		"notes":  post(h, "/notes", url.Values{"bookNoteId": {"1"}}),
	}
	for name, rec := range responses {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Empty(t, rec.Header().Get("Location"))
			assert.NotContains(t, rec.Body.String(), "disk I/O error")
			assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
		})
	}
}

func TestFailingStore_NotFoundMapsTo404(t *testing.T) {
	h := newTestHandler(t, failingJournal{err: fmt.Errorf("wrapped: %w", model.ErrBookNotFound)}, config.RateLimit{})

	rec := post(h, "/delete", url.Values{"deleteBookId": {"1"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	store := newTestStore(t)
	addBook(t, store, "Dune", "2024-03-02", 9)

	rec := get(newTestHandler(t, store, config.RateLimit{}), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok books=1\n", rec.Body.String())

	rec = get(newTestHandler(t, failingJournal{err: errors.New("closed")}, config.RateLimit{}), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStaticAndUnknownRoutes(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), config.RateLimit{})

	rec := get(h, "/static/style.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec = get(h, "/no/such/page")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(h, "/new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/add"`)
}
