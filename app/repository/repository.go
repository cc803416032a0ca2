// Package repository implements sqlx-backed persistence for bot entities.
package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict is returned when an insert violates a unique constraint.
var ErrConflict = errors.New("repository: conflict")

const pqUniqueViolation = "23505"

func mapFindErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mapInsertErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrConflict
	}
	return err
}
