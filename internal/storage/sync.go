package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/user/booknotes/internal/model"
)

// Drift kinds reported by CheckNotes.
const (
	DriftMissing = "missing" // row without a mirror file
	DriftStale   = "stale"   // mirror content differs from the row
	DriftOrphan  = "orphan"  // mirror file without a row
)

// Drift describes one mirror file that disagrees with the database.
type Drift struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	Title      string `json:"title,omitempty"`
	RowHash    string `json:"row_hash,omitempty"`
	MirrorHash string `json:"mirror_hash,omitempty"`
}

// SyncReport summarizes a SyncNotes run.
type SyncReport struct {
	Written   int `json:"written"`   // rows whose mirror file was created or rewritten
	Removed   int `json:"removed"`   // orphan files deleted
	Unchanged int `json:"unchanged"` // rows whose mirror file already matched
}

// CheckNotes compares every row with its mirror file without changing anything.
func (s *Store) CheckNotes(ctx context.Context) ([]Drift, error) {
	drift, _, err := s.checkNotes(ctx)
	return drift, err
}

// checkNotes also returns how many rows were compared.
func (s *Store) checkNotes(ctx context.Context) ([]Drift, int, error) {
	books, err := s.books.List(ctx, model.ByID)
	if err != nil {
		return nil, 0, err
	}
	mirrored, err := s.notes.List()
	if err != nil {
		return nil, 0, err
	}

	known := make(map[int64]bool, len(books))
	drift := []Drift{}
	for _, b := range books {
		known[b.ID] = true
		content, err := s.notes.Read(b.ID)
		switch {
		case errors.Is(err, model.ErrNoteNotFound):
			drift = append(drift, Drift{ID: b.ID, Kind: DriftMissing, Title: b.Title, RowHash: model.NotesHash(b.Notes)})
		case err != nil:
			return nil, 0, err
		case content != b.Notes:
			drift = append(drift, Drift{
				ID:         b.ID,
				Kind:       DriftStale,
				Title:      b.Title,
				RowHash:    model.NotesHash(b.Notes),
				MirrorHash: model.NotesHash(content),
			})
		}
	}

	for _, id := range mirrored {
		if known[id] {
			continue
		}
		content, err := s.notes.Read(id)
		if err != nil {
			return nil, 0, err
		}
		drift = append(drift, Drift{ID: id, Kind: DriftOrphan, MirrorHash: model.NotesHash(content)})
	}

	sort.Slice(drift, func(i, j int) bool { return drift[i].ID < drift[j].ID })
	return drift, len(books), nil
}

// SyncNotes makes the mirror match the database: missing and stale files are
// rewritten, orphan files are removed.
func (s *Store) SyncNotes(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	drift, rows, err := s.checkNotes(ctx)
	if err != nil {
		return report, err
	}

	drifted := 0
	for _, d := range drift {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		changed, err := s.RestoreNote(ctx, d.ID)
		if err != nil {
			return report, fmt.Errorf("syncing note %d: %w", d.ID, err)
		}
		if d.Kind == DriftOrphan {
			if changed {
				report.Removed++
			}
			continue
		}
		drifted++
		if changed {
			report.Written++
		} else {
			// Repaired by someone else since the check
			report.Unchanged++
		}
	}

	report.Unchanged += rows - drifted
	return report, nil
}
