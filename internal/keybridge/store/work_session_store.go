package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoOpenSession = errors.New("no open work session")
	ErrSessionOpen   = errors.New("employee already has an open work session")
)

type WorkSessionRecord struct {
	SessionID  int64
	EmployeeID int64
	ShiftStart time.Time
	ShiftEnd   *time.Time // nil while the session is open
}

type WorkSessionStore interface {
	// FindOpen returns the employee's open session, or ErrNoOpenSession.
	// At most one open session exists per employee.
	FindOpen(ctx context.Context, employeeID int64) (WorkSessionRecord, error)

	// OpenSession returns ErrSessionOpen when the employee already has
	// an open session, keeping the one-open-session invariant inside
	// the store rather than in its callers.
	OpenSession(ctx context.Context, employeeID int64, start time.Time) error

	CloseSession(ctx context.Context, sessionID int64, end time.Time) error

	// CloseOlderThan force-closes sessions whose shift started before
	// the cutoff and are still open. Returns the number closed.
	CloseOlderThan(ctx context.Context, cutoff, end time.Time) (int64, error)
}
