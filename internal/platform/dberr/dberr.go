// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/bazaar/internal/platform/apperr"
)

var (
	// ErrNotFound is returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")

	// ErrDuplicate is returned when an insert or update hits a unique constraint.
	ErrDuplicate = apperr.Conflict("Resource already exists")
)

// Wrap inspects a database error and converts it into an [apperr.AppError].
//
// # Mapping
//
//   - pgx.ErrNoRows becomes [ErrNotFound].
//   - SQLSTATE 23505 (unique_violation) becomes [ErrDuplicate] with the constraint as cause.
//   - Anything else becomes a 500 whose cause is prefixed with action.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	if constraint, ok := UniqueViolation(err); ok {
		duplicate := *ErrDuplicate
		duplicate.Cause = fmt.Errorf("%s: unique constraint %q: %w", action, constraint, err)
		return &duplicate
	}

	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}

// UniqueViolation reports whether err is a unique constraint violation and names the constraint.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsNotFound reports whether err is (or wraps) [ErrNotFound].
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err came from a unique constraint violation.
func IsDuplicate(err error) bool {
	ae := apperr.As(err)
	return ae != nil && ae.Code == ErrDuplicate.Code && ae.HTTPStatus == ErrDuplicate.HTTPStatus
}
