package model

import (
	"fmt"
	"strings"
)

// SortOrder selects how the journal listing is ordered.
type SortOrder int

const (
	// ByID lists books in insertion order.
	ByID SortOrder = iota
	// ByRating lists the highest rated books first.
	ByRating
	// ByDate lists the most recently read books first.
	ByDate
)

// String returns the query-parameter form of the order.
func (o SortOrder) String() string {
	switch o {
	case ByRating:
		return "rating"
	case ByDate:
		return "date"
	default:
		return "id"
	}
}

// ParseSortOrder accepts id, rating, date and recency (case-insensitive).
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "id":
		return ByID, nil
	case "rating":
		return ByRating, nil
	case "date", "recency":
		return ByDate, nil
	}
	return ByID, fmt.Errorf("%w: %q", ErrInvalidSortOrder, s)
}
