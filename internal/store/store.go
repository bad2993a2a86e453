package store

import (
	"errors"

	"github.com/vantage-intel/vantage/internal/adapters/database"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store handles all relational persistence. Callers do not retry failed
// Store calls: a persistence error aborts the current workflow run.
type Store struct {
	db *database.DB
}

// New creates new store
func New(db *database.DB) *Store {
	return &Store{db: db}
}
