// Package storage provides persistent storage for journal entries.
package storage

import (
	"context"

	"github.com/user/booknotes/internal/model"
)

// Journal defines the operations the web and CLI layers need.
type Journal interface {
	// Reads
	List(ctx context.Context, order model.SortOrder) ([]*model.Book, error)
	Get(ctx context.Context, id int64) (*model.Book, error)
	FindByTitle(ctx context.Context, title string) (*model.Book, error)
	Count(ctx context.Context) (int, error)
	ReadNotes(ctx context.Context, id int64) (string, error)

	// Writes (row and note file together)
	Add(ctx context.Context, b *model.Book) (*model.Book, error)
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) (*model.Book, error)

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error
}

var _ Journal = (*Store)(nil)
