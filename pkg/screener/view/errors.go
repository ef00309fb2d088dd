package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/komsit37/screener/pkg/screener/types"
)

var (
	// ErrInvalidOrder is returned when a column order is not a permutation of
	// the known columns.
	ErrInvalidOrder = errors.New("invalid column order")
	// ErrLockedColumn is returned when an order would move a locked column.
	ErrLockedColumn = errors.New("locked column cannot be moved")
	// ErrInvalidMode is returned for refresh modes other than fast and slow.
	ErrInvalidMode = errors.New("invalid refresh mode")
)

// OrderError details why a column order was rejected.
type OrderError struct {
	Missing   []types.ColumnKey
	Duplicate []types.ColumnKey
	Unknown   []types.ColumnKey
}

func (e *OrderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+joinKeys(e.Missing))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate "+joinKeys(e.Duplicate))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown "+joinKeys(e.Unknown))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidOrder, strings.Join(parts, "; "))
}

func (e *OrderError) Unwrap() error { return ErrInvalidOrder }

// LockedError names a locked column that a change tried to move or hide.
type LockedError struct {
	Column types.ColumnKey
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrLockedColumn, e.Column)
}

func (e *LockedError) Unwrap() error { return ErrLockedColumn }

func joinKeys(keys []types.ColumnKey) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
