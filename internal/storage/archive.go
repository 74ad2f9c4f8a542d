package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/booknotes/internal/model"
)

// Archive formats.
const (
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
)

// ErrUnknownFormat is returned for archive formats other than jsonl and yaml.
var ErrUnknownFormat = errors.New("unknown archive format")

// Entry is the archived form of a book. Dates are kept as YYYY-MM-DD text.
type Entry struct {
	ID       int64   `json:"id,omitempty" yaml:"id,omitempty"`
	Title    string  `json:"title" yaml:"title"`
	Author   string  `json:"author,omitempty" yaml:"author,omitempty"`
	ISBN     string  `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	DateRead string  `json:"date_read" yaml:"date_read"`
	Rating   float64 `json:"rating" yaml:"rating"`
	Summary  string  `json:"summary,omitempty" yaml:"summary,omitempty"`
	Notes    string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func newEntry(b *model.Book) Entry {
	return Entry{
		ID:       b.ID,
		Title:    b.Title,
		Author:   b.Author,
		ISBN:     b.ISBN,
		DateRead: b.DateReadString(),
		Rating:   b.Rating,
		Summary:  b.Summary,
		Notes:    b.Notes,
	}
}

// Book converts the entry back to a book. The archived id is dropped.
func (e Entry) Book() (*model.Book, error) {
	read, err := model.ParseDate(e.DateRead)
	if err != nil {
		return nil, err
	}
	return &model.Book{
		Title:    e.Title,
		Author:   e.Author,
		ISBN:     e.ISBN,
		DateRead: read,
		Rating:   e.Rating,
		Summary:  e.Summary,
		Notes:    e.Notes,
	}, nil
}

// ParseFormat validates an archive format name.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(s) {
	case FormatJSONL, "json":
		return FormatJSONL, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Export writes every book, in id order, to w.
func (s *Store) Export(ctx context.Context, w io.Writer, format string) (int, error) {
	books, err := s.books.List(ctx, model.ByID)
	if err != nil {
		return 0, err
	}
	entries := make([]Entry, 0, len(books))
	for _, b := range books {
		entries = append(entries, newEntry(b))
	}

	switch format {
	case FormatJSONL:
		return len(entries), writeJSONL(w, entries)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return 0, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return len(entries), enc.Close()
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Import reads an archive and adds every entry as a new book.
// It stops at the first entry that cannot be added.
func (s *Store) Import(ctx context.Context, r io.Reader, format string) (int, error) {
	var entries []Entry
	var err error
	switch format {
	case FormatJSONL:
		entries, err = readJSONL(r)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&entries)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return 0, err
	}

	for i, e := range entries {
		b, err := e.Book()
		if err != nil {
			return i, fmt.Errorf("entry %d: %w", i+1, err)
		}
		if _, err := s.Add(ctx, b); err != nil {
			return i, fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	return len(entries), nil
}

func writeJSONL(w io.Writer, entries []Entry) error {
	writer := bufio.NewWriter(w)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	return writer.Flush()
}

func readJSONL(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	// Notes can be long
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("failed to parse entry at line %d: %w", lineNum, err)
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading archive: %w", err)
	}
	return entries, nil
}
