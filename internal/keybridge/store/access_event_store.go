package store

import (
	"context"
	"time"
)

// AccessEventRecord captures a single access decision for the audit log.
// One row is written per scan attempt regardless of outcome.
type AccessEventRecord struct {
	EventID    int64
	TagID      string
	Reader     string
	Granted    bool
	Reason     string
	EmployeeID *int64
	DecidedAt  time.Time
}

// AccessEventStore persists access decisions as an append-only audit log.
type AccessEventStore interface {
	// RecordEvent inserts the event and returns its assigned id.
	RecordEvent(ctx context.Context, rec AccessEventRecord) (int64, error)

	ListEvents(ctx context.Context, limit int) ([]AccessEventRecord, error)
}
