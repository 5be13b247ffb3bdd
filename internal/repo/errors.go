// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file centralizes the error values shared by all
// repository functions.
package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate indicates that an insert violated a uniqueness constraint.
// Callers use it to distinguish platform redeliveries (raw updates) and
// idempotent re-runs (documents) from genuine storage failures.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a uniqueness-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations, so
// the check is tolerant of message variants in addition to GORM's sentinel.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// notFound maps GORM's record-not-found to the package sentinel.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
