package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
)

// Book is one journal entry. DateRead holds a calendar date at UTC midnight.
type Book struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	ISBN     string    `json:"isbn"`
	DateRead time.Time `json:"date_read"`
	Rating   float64   `json:"rating"`
	Summary  string    `json:"summary"`
	Notes    string    `json:"notes"`
}

// ParsedDate returns the derived sort key for DateRead in epoch milliseconds.
func (b *Book) ParsedDate() int64 {
	return EpochMillis(b.DateRead)
}

// DateReadString returns DateRead as YYYY-MM-DD.
func (b *Book) DateReadString() string {
	return FormatDate(b.DateRead)
}

// Validate checks the fields a book needs before it can be stored.
func (b *Book) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	if b.DateRead.IsZero() {
		return fmt.Errorf("%w: date_read is required", ErrInvalidInput)
	}
	if math.IsNaN(b.Rating) || math.IsInf(b.Rating, 0) {
		return fmt.Errorf("%w: rating must be a finite number", ErrInvalidInput)
	}
	return nil
}

// NotesHash returns the first 12 hex characters of the SHA-256 of notes.
// It identifies mirror content in drift reports without printing the notes.
func NotesHash(notes string) string {
	sum := sha256.Sum256([]byte(notes))
	return hex.EncodeToString(sum[:])[:12]
}
