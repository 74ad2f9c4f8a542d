package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/user/booknotes/internal/model"
)

// noteFilePerms is applied after each write (atomic.WriteFile creates 0600 temp files).
const noteFilePerms = 0644

// noteFileRegex matches mirror files: <id>.txt with a positive decimal id.
var noteFileRegex = regexp.MustCompile(`^[1-9][0-9]*\.txt$`)

// NoteMirror keeps one plain-text file per book holding its notes.
// Files are keyed by book id, never by title.
type NoteMirror struct {
	dir string
}

// NewNoteMirror creates the mirror directory if needed.
func NewNoteMirror(dir string) (*NoteMirror, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create notes directory: %w", err)
	}
	return &NoteMirror{dir: dir}, nil
}

// Dir returns the mirror directory.
func (m *NoteMirror) Dir() string {
	return m.dir
}

// Path returns the mirror file path for a book.
func (m *NoteMirror) Path(id int64) string {
	return filepath.Join(m.dir, strconv.FormatInt(id, 10)+".txt")
}

// Write creates or replaces the mirror file for a book.
func (m *NoteMirror) Write(id int64, notes string) error {
	path := m.Path(id)
	if err := atomic.WriteFile(path, strings.NewReader(notes)); err != nil {
		return fmt.Errorf("failed to write note file %s: %w", path, err)
	}
	if err := os.Chmod(path, noteFilePerms); err != nil {
		return fmt.Errorf("failed to set note file permissions: %w", err)
	}
	return nil
}

// Read returns the mirror file contents for a book.
func (m *NoteMirror) Read(id int64) (string, error) {
	data, err := os.ReadFile(m.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: book %d", model.ErrNoteNotFound, id)
		}
		return "", fmt.Errorf("failed to read note file: %w", err)
	}
	return string(data), nil
}

// Exists returns true if the book has a mirror file.
func (m *NoteMirror) Exists(id int64) bool {
	_, err := os.Stat(m.Path(id))
	return err == nil
}

// Remove deletes the mirror file for a book. A missing file is not an error.
func (m *NoteMirror) Remove(id int64) error {
	err := os.Remove(m.Path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove note file: %w", err)
	}
	return nil
}

// List returns the ids that have a mirror file, ascending.
func (m *NoteMirror) List() ([]int64, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("failed to read notes directory: %w", err)
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := IDFromPath(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// IDFromPath extracts the book id from a mirror file path.
// Returns false for anything that is not <id>.txt (temp files included).
func IDFromPath(path string) (int64, bool) {
	name := filepath.Base(path)
	if !noteFileRegex.MatchString(name) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(name, ".txt"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
