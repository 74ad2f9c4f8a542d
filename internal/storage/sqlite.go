package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/user/booknotes/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS book_notes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT    NOT NULL,
	author      TEXT    NOT NULL DEFAULT '',
	isbn        TEXT    NOT NULL DEFAULT '',
	date_read   TEXT    NOT NULL,
	rating      REAL    NOT NULL DEFAULT 0,
	summary     TEXT    NOT NULL DEFAULT '',
	notes       TEXT    NOT NULL DEFAULT '',
	parsed_date INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_book_notes_parsed_date ON book_notes(parsed_date);
CREATE INDEX IF NOT EXISTS idx_book_notes_rating ON book_notes(rating);
CREATE INDEX IF NOT EXISTS idx_book_notes_title ON book_notes(title);
`

const selectColumns = `id, title, author, isbn, date_read, rating, summary, notes, parsed_date`

// orderClauses maps each sort order to its ORDER BY clause.
var orderClauses = map[model.SortOrder]string{
	model.ByID:     "id ASC",
	model.ByRating: "rating DESC, id ASC",
	model.ByDate:   "parsed_date DESC, id DESC",
}

// bookRow is the database shape of a book.
type bookRow struct {
	ID         int64   `db:"id"`
	Title      string  `db:"title"`
	Author     string  `db:"author"`
	ISBN       string  `db:"isbn"`
	DateRead   string  `db:"date_read"`
	Rating     float64 `db:"rating"`
	Summary    string  `db:"summary"`
	Notes      string  `db:"notes"`
	ParsedDate int64   `db:"parsed_date"`
}

func newBookRow(b *model.Book) bookRow {
	return bookRow{
		ID:         b.ID,
		Title:      b.Title,
		Author:     b.Author,
		ISBN:       b.ISBN,
		DateRead:   b.DateReadString(),
		Rating:     b.Rating,
		Summary:    b.Summary,
		Notes:      b.Notes,
		ParsedDate: b.ParsedDate(),
	}
}

func (r bookRow) book() (*model.Book, error) {
	read, err := model.ParseDate(r.DateRead)
	if err != nil {
		return nil, fmt.Errorf("book %d: %w", r.ID, err)
	}
	return &model.Book{
		ID:       r.ID,
		Title:    r.Title,
		Author:   r.Author,
		ISBN:     r.ISBN,
		DateRead: read,
		Rating:   r.Rating,
		Summary:  r.Summary,
		Notes:    r.Notes,
	}, nil
}

// BookTable provides access to the book_notes table.
type BookTable struct {
	db     *sqlx.DB
	driver string
	path   string
}

// OpenBookTable opens (creating if needed) the SQLite database at path and
// ensures the schema exists. driver is "sqlite3" or "sqlite".
func OpenBookTable(ctx context.Context, driver, path string) (*BookTable, error) {
	db, err := sqlx.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &BookTable{db: db, driver: driver, path: path}, nil
}

// dsn builds the connection string with WAL and a busy timeout for either driver.
func dsn(driver, path string) string {
	if driver == "sqlite" {
		return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

// Close closes the database connection.
func (t *BookTable) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (t *BookTable) Path() string {
	return t.path
}

// Ping checks that the database is reachable.
func (t *BookTable) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// Begin starts a transaction.
func (t *BookTable) Begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// List returns every book in the given order. It never writes.
func (t *BookTable) List(ctx context.Context, order model.SortOrder) ([]*model.Book, error) {
	clause, ok := orderClauses[order]
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidSortOrder, order)
	}

	var rows []bookRow
	q := `SELECT ` + selectColumns + ` FROM book_notes ORDER BY ` + clause
	if err := t.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return toBooks(rows)
}

// Get returns the book with the given id.
func (t *BookTable) Get(ctx context.Context, id int64) (*model.Book, error) {
	return getBook(ctx, t.db, id)
}

// FindByTitle returns the oldest book with exactly this title.
func (t *BookTable) FindByTitle(ctx context.Context, title string) (*model.Book, error) {
	var row bookRow
	q := `SELECT ` + selectColumns + ` FROM book_notes WHERE title = ? ORDER BY id ASC LIMIT 1`
	err := t.db.GetContext(ctx, &row, q, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: title %q", model.ErrBookNotFound, title)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return row.book()
}

// Count returns the number of books.
func (t *BookTable) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM book_notes`); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return n, nil
}

// MaxID returns the highest id ever assigned, or 0 for a fresh table.
func (t *BookTable) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := t.db.GetContext(ctx, &id, `SELECT COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'book_notes'), 0)`); err != nil {
		return 0, fmt.Errorf("failed to read max id: %w", err)
	}
	return id, nil
}

// Insert adds a book and returns its assigned id. b.ID is ignored.
func (t *BookTable) Insert(ctx context.Context, tx *sqlx.Tx, b *model.Book) (int64, error) {
	row := newBookRow(b)
	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO book_notes (title, author, isbn, date_read, rating, summary, notes, parsed_date)
		VALUES (:title, :author, :isbn, :date_read, :rating, :summary, :notes, :parsed_date)
	`, row)
	if err != nil {
		return 0, fmt.Errorf("failed to insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

// Update overwrites every field of the book with b.ID.
func (t *BookTable) Update(ctx context.Context, tx *sqlx.Tx, b *model.Book) error {
	row := newBookRow(b)
	res, err := tx.NamedExecContext(ctx, `
		UPDATE book_notes SET
			title = :title, author = :author, isbn = :isbn, date_read = :date_read,
			rating = :rating, summary = :summary, notes = :notes, parsed_date = :parsed_date
		WHERE id = :id
	`, row)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	return expectOneRow(res, b.ID)
}

// Delete removes the book with the given id.
func (t *BookTable) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM book_notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return expectOneRow(res, id)
}

// GetTx reads a book inside a transaction.
func (t *BookTable) GetTx(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Book, error) {
	return getBook(ctx, tx, id)
}

func getBook(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Book, error) {
	var row bookRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+selectColumns+` FROM book_notes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", model.ErrBookNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return row.book()
}

func expectOneRow(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", model.ErrBookNotFound, id)
	}
	return nil
}

func toBooks(rows []bookRow) ([]*model.Book, error) {
	books := make([]*model.Book, 0, len(rows))
	for _, r := range rows {
		b, err := r.book()
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}
