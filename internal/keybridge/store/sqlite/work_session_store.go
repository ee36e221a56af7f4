package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/accesslab/keybridge/internal/db"
	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type WorkSessionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewWorkSessionStore(db *sql.DB, writer *dbpkg.Worker) *WorkSessionStore {
	return &WorkSessionStore{db: db, writer: writer}
}

func (s *WorkSessionStore) FindOpen(ctx context.Context, employeeID int64) (store.WorkSessionRecord, error) {
	var rec store.WorkSessionRecord
	var startMs int64

	err := s.db.QueryRowContext(ctx, `
SELECT session_id, employee_id, shift_start_ms
FROM work_sessions
WHERE employee_id = ? AND shift_end_ms IS NULL;
`, employeeID).Scan(&rec.SessionID, &rec.EmployeeID, &startMs)

	if err == sql.ErrNoRows {
		return store.WorkSessionRecord{}, store.ErrNoOpenSession
	}
	if err != nil {
		return store.WorkSessionRecord{}, fmt.Errorf("FindOpen query: %w", err)
	}

	rec.ShiftStart = time.UnixMilli(startMs).UTC()
	return rec, nil
}

// OpenSession checks for an open session inside the write transaction,
// so concurrent callers cannot both slip past a stale read. The unique
// partial index on open sessions backstops the same invariant at the
// schema level.
func (s *WorkSessionStore) OpenSession(ctx context.Context, employeeID int64, start time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, `
SELECT session_id FROM work_sessions
WHERE employee_id = ? AND shift_end_ms IS NULL;
`, employeeID).Scan(&existing)
		if err == nil {
			return store.ErrSessionOpen
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("OpenSession lookup: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO work_sessions(employee_id, shift_start_ms) VALUES (?, ?);
`, employeeID, start.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("OpenSession insert: %w", err)
		}
		return nil
	})
}

func (s *WorkSessionStore) CloseSession(ctx context.Context, sessionID int64, end time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE work_sessions SET shift_end_ms = ?
WHERE session_id = ? AND shift_end_ms IS NULL;
`, end.UTC().UnixMilli(), sessionID)
		if err != nil {
			return fmt.Errorf("CloseSession update: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return store.ErrNoOpenSession
		}
		return nil
	})
}

// CloseOlderThan uses the partial index on open sessions for an
// efficient sweep.
func (s *WorkSessionStore) CloseOlderThan(ctx context.Context, cutoff, end time.Time) (int64, error) {
	var closed int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE work_sessions SET shift_end_ms = ?
WHERE shift_end_ms IS NULL AND shift_start_ms < ?;
`, end.UTC().UnixMilli(), cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("CloseOlderThan: %w", err)
		}
		closed, _ = res.RowsAffected()
		return nil
	})
	return closed, err
}
