// Package ledger is the only reader and writer of sessions, attendees and
// tickets. It owns the capacity gate: a ticket insert and the count it is
// checked against happen inside one transaction holding the session row.
package ledger

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a session or ticket does not exist.
var ErrNotFound = errors.New("not found")

// ErrCapacityExceeded is returned when a session already holds as many
// tickets as its capacity allows.
var ErrCapacityExceeded = errors.New("session is at full capacity")

// ErrConflict is returned when a delete is blocked by dependent records,
// e.g. removing a session that still owns tickets.
var ErrConflict = errors.New("conflict")

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
