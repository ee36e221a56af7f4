package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/accesslab/keybridge/internal/db"
	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

func (s *AccessEventStore) RecordEvent(ctx context.Context, rec store.AccessEventRecord) (int64, error) {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}

	var granted int
	if rec.Granted {
		granted = 1
	}
	var employeeID any
	if rec.EmployeeID != nil {
		employeeID = *rec.EmployeeID
	}

	var eventID int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_events(tag_id, reader, granted, reason, employee_id, decided_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, rec.TagID, rec.Reader, granted, rec.Reason, employeeID, rec.DecidedAt.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		eventID, _ = res.LastInsertId()
		return nil
	})
	return eventID, err
}

func (s *AccessEventStore) ListEvents(ctx context.Context, limit int) ([]store.AccessEventRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, tag_id, reader, granted, reason, employee_id, decided_at_ms
FROM access_events ORDER BY event_id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListEvents query: %w", err)
	}
	defer rows.Close()

	var out []store.AccessEventRecord
	for rows.Next() {
		var rec store.AccessEventRecord
		var granted int
		var employeeID sql.NullInt64
		var decidedMs int64
		if err := rows.Scan(&rec.EventID, &rec.TagID, &rec.Reader, &granted, &rec.Reason, &employeeID, &decidedMs); err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		rec.Granted = granted == 1
		if employeeID.Valid {
			v := employeeID.Int64
			rec.EmployeeID = &v
		}
		rec.DecidedAt = time.UnixMilli(decidedMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
