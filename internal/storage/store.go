package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/user/booknotes/internal/model"
)

// Options configures NewStore.
type Options struct {
	Driver   string // "sqlite3" or "sqlite"
	DBPath   string
	NotesDir string
}

// Store implements the Journal interface using a SQLite table and a note mirror.
// Every write touches both and is committed as one logical operation: if the
// mirror cannot be updated the row change is rolled back, and if the commit
// fails the mirror change is undone.
type Store struct {
	books *BookTable
	notes *NoteMirror
}

// NewStore opens the database and the note mirror.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	notes, err := NewNoteMirror(opts.NotesDir)
	if err != nil {
		return nil, err
	}

	books, err := OpenBookTable(ctx, opts.Driver, opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Store{books: books, notes: notes}, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return s.books.Close()
}

// Notes returns the note mirror.
func (s *Store) Notes() *NoteMirror {
	return s.notes
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.books.Ping(ctx)
}

// List returns every book in the given order.
func (s *Store) List(ctx context.Context, order model.SortOrder) ([]*model.Book, error) {
	return s.books.List(ctx, order)
}

// Get retrieves a book by id.
func (s *Store) Get(ctx context.Context, id int64) (*model.Book, error) {
	return s.books.Get(ctx, id)
}

// FindByTitle retrieves the oldest book with the given title.
func (s *Store) FindByTitle(ctx context.Context, title string) (*model.Book, error) {
	return s.books.FindByTitle(ctx, title)
}

// Count returns the number of books.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.books.Count(ctx)
}

// Stats summarizes the journal on disk.
type Stats struct {
	Books     int    `json:"books"`
	MaxID     int64  `json:"max_id"`
	DBPath    string `json:"db_path"`
	NotesDir  string `json:"notes_dir"`
	NoteFiles int    `json:"note_files"`
}

// Stats reports row and note file counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	n, err := s.books.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	maxID, err := s.books.MaxID(ctx)
	if err != nil {
		return Stats{}, err
	}
	files, err := s.notes.List()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Books:     n,
		MaxID:     maxID,
		DBPath:    s.books.Path(),
		NotesDir:  s.notes.Dir(),
		NoteFiles: len(files),
	}, nil
}

// Add inserts a book and creates its note file. The returned copy carries the
// assigned id.
func (s *Store) Add(ctx context.Context, b *model.Book) (*model.Book, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.books.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	id, err := s.books.Insert(ctx, tx, b)
	if err != nil {
		return nil, err
	}

	if err := s.notes.Write(id, b.Notes); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		// Undo the mirror file
		if rmErr := s.notes.Remove(id); rmErr != nil {
			return nil, errors.Join(fmt.Errorf("commit failed: %w", err), fmt.Errorf("%w: %w", model.ErrMirrorStale, rmErr))
		}
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	added := *b
	added.ID = id
	slog.Debug("book added", "id", id, "title", b.Title)
	return &added, nil
}

// Update overwrites every field of the book with b.ID and rewrites its note file.
func (s *Store) Update(ctx context.Context, b *model.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}

	tx, err := s.books.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if err := s.books.Update(ctx, tx, b); err != nil {
		return err
	}

	undo, err := s.snapshotNote(b.ID)
	if err != nil {
		return err
	}

	if err := s.notes.Write(b.ID, b.Notes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if undoErr := undo(); undoErr != nil {
			return errors.Join(fmt.Errorf("commit failed: %w", err), fmt.Errorf("%w: %w", model.ErrMirrorStale, undoErr))
		}
		return fmt.Errorf("commit failed: %w", err)
	}

	slog.Debug("book updated", "id", b.ID, "title", b.Title)
	return nil
}

// Delete removes a book and its note file, returning the book as it was.
func (s *Store) Delete(ctx context.Context, id int64) (*model.Book, error) {
	tx, err := s.books.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	// Read first so the caller still knows what was deleted
	book, err := s.books.GetTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := s.books.Delete(ctx, tx, id); err != nil {
		return nil, err
	}

	undo, err := s.snapshotNote(id)
	if err != nil {
		return nil, err
	}

	if err := s.notes.Remove(id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if undoErr := undo(); undoErr != nil {
			return nil, errors.Join(fmt.Errorf("commit failed: %w", err), fmt.Errorf("%w: %w", model.ErrMirrorStale, undoErr))
		}
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	slog.Debug("book deleted", "id", id, "title", book.Title)
	return book, nil
}

// ReadNotes returns the mirrored notes for a book. A missing mirror file is
// recreated from the row before it is read.
func (s *Store) ReadNotes(ctx context.Context, id int64) (string, error) {
	notes, err := s.notes.Read(id)
	if err == nil {
		return notes, nil
	}
	if !errors.Is(err, model.ErrNoteNotFound) {
		return "", err
	}

	book, getErr := s.books.Get(ctx, id)
	if getErr != nil {
		return "", getErr
	}
	slog.Warn("note file missing, restoring from database", "id", id)
	if err := s.notes.Write(id, book.Notes); err != nil {
		return "", err
	}
	return book.Notes, nil
}

// RestoreNote rewrites one mirror file from its row, or removes the file
// when the row no longer exists. It returns true if anything changed.
func (s *Store) RestoreNote(ctx context.Context, id int64) (bool, error) {
	book, err := s.books.Get(ctx, id)
	if errors.Is(err, model.ErrBookNotFound) {
		if !s.notes.Exists(id) {
			return false, nil
		}
		return true, s.notes.Remove(id)
	}
	if err != nil {
		return false, err
	}

	current, err := s.notes.Read(id)
	if err == nil && current == book.Notes {
		return false, nil
	}
	if err != nil && !errors.Is(err, model.ErrNoteNotFound) {
		return false, err
	}
	return true, s.notes.Write(id, book.Notes)
}

// snapshotNote captures the current mirror file so it can be put back.
func (s *Store) snapshotNote(id int64) (func() error, error) {
	old, err := s.notes.Read(id)
	if errors.Is(err, model.ErrNoteNotFound) {
		return func() error { return s.notes.Remove(id) }, nil
	}
	if err != nil {
		return nil, err
	}
	return func() error { return s.notes.Write(id, old) }, nil
}

// rollback aborts tx unless it was already committed.
func rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Warn("rollback failed", "error", err)
	}
}
