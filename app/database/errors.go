package database

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrPersistenceConflict marks a write that lost a race on a unique key or
// on the database lock. Callers may re-read and re-apply once.
var ErrPersistenceConflict = errors.New("persistence conflict")

func classifyWriteError(op string, err error) error {
	if isConflict(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrPersistenceConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConflict(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	code := sqliteErr.Code()
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}

	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}

	return false
}
