package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row matches the lookup
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a unique constraint
	ErrConflict = errors.New("conflict")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

// ConflictError names the unique constraint a write violated
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique constraint %s violated", e.Constraint)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// mapError translates driver errors into the package sentinels
func mapError(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s not found: %s: %w", entity, id, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &ConflictError{Constraint: pgErr.ConstraintName}
		case pgInvalidText:
			// malformed uuid literal; no such row can exist
			return fmt.Errorf("%s not found: %s: %w", entity, id, ErrNotFound)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s references a missing row: %w", entity, ErrNotFound)
		}
	}
	return err
}
