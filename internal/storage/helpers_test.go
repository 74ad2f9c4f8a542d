package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/booknotes/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWithDriver(t, "sqlite3")
}

func newTestStoreWithDriver(t *testing.T, driver string) *Store {
	t.Helper()

	tmpDir := t.TempDir()
	store, err := NewStore(context.Background(), Options{
		Driver:   driver,
		DBPath:   filepath.Join(tmpDir, "booknotes.db"),
		NotesDir: filepath.Join(tmpDir, "notes"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newBook(t *testing.T, title, read string, rating float64) *model.Book {
	t.Helper()
	return &model.Book{
		Title:    title,
		Author:   "Author of " + title,
		ISBN:     "isbn-" + title,
		DateRead: date(t, read),
		Rating:   rating,
		Summary:  "Summary of " + title,
		Notes:    "Notes on " + title,
	}
}

func mustAdd(t *testing.T, s *Store, b *model.Book) *model.Book {
	t.Helper()
	added, err := s.Add(context.Background(), b)
	require.NoError(t, err)
	return added
}

// parsedDates returns id -> parsed_date as stored, bypassing the Book view.
func (t *BookTable) parsedDates(ctx context.Context) (map[int64]int64, error) {
	var rows []struct {
		ID         int64 `db:"id"`
		ParsedDate int64 `db:"parsed_date"`
	}
	if err := t.db.SelectContext(ctx, &rows, `SELECT id, parsed_date FROM book_notes`); err != nil {
		return nil, fmt.Errorf("failed to read parsed dates: %w", err)
	}
	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.ID] = r.ParsedDate
	}
	return out, nil
}
