package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/accesslab/keybridge/internal/db"
	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type ReaderStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewReaderStore(db *sql.DB, writer *dbpkg.Worker) *ReaderStore {
	return &ReaderStore{db: db, writer: writer}
}

func (s *ReaderStore) GetReader(ctx context.Context, deviceID string) (store.ReaderRecord, error) {
	var rec store.ReaderRecord
	var online int
	var lastSeen sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
SELECT device_id, name, location, online, last_seen_at_ms
FROM readers WHERE device_id = ?;
`, deviceID).Scan(&rec.DeviceID, &rec.Name, &rec.Location, &online, &lastSeen)

	if err == sql.ErrNoRows {
		return store.ReaderRecord{}, store.ErrReaderNotFound
	}
	if err != nil {
		return store.ReaderRecord{}, fmt.Errorf("GetReader query: %w", err)
	}

	rec.Online = online == 1
	if lastSeen.Valid {
		t := time.UnixMilli(lastSeen.Int64).UTC()
		rec.LastSeen = &t
	}
	return rec, nil
}

func (s *ReaderStore) ListReaders(ctx context.Context) ([]store.ReaderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT device_id, name, location, online, last_seen_at_ms
FROM readers ORDER BY device_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListReaders query: %w", err)
	}
	defer rows.Close()

	var out []store.ReaderRecord
	for rows.Next() {
		var rec store.ReaderRecord
		var online int
		var lastSeen sql.NullInt64
		if err := rows.Scan(&rec.DeviceID, &rec.Name, &rec.Location, &online, &lastSeen); err != nil {
			return nil, fmt.Errorf("ListReaders scan: %w", err)
		}
		rec.Online = online == 1
		if lastSeen.Valid {
			t := time.UnixMilli(lastSeen.Int64).UTC()
			rec.LastSeen = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ReaderStore) UpsertReader(ctx context.Context, rec store.ReaderRecord) error {
	deviceID := strings.TrimSpace(rec.DeviceID)
	if deviceID == "" {
		return nil
	}

	var online int
	if rec.Online {
		online = 1
	}
	var lastSeen any
	if rec.LastSeen != nil {
		lastSeen = rec.LastSeen.UTC().UnixMilli()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Keep existing name/location when the incoming record leaves
		// them blank (controller self-announcements carry neither).
		if _, err := tx.ExecContext(ctx, `
INSERT INTO readers(device_id, name, location, online, last_seen_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  name = CASE WHEN excluded.name != '' THEN excluded.name ELSE readers.name END,
  location = CASE WHEN excluded.location != '' THEN excluded.location ELSE readers.location END,
  online = excluded.online,
  last_seen_at_ms = COALESCE(excluded.last_seen_at_ms, readers.last_seen_at_ms);
`, deviceID, rec.Name, rec.Location, online, lastSeen); err != nil {
			return fmt.Errorf("UpsertReader: %w", err)
		}
		return nil
	})
}

func (s *ReaderStore) RenameReader(ctx context.Context, deviceID, name string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE readers SET name = ? WHERE device_id = ?;
`, name, deviceID)
		if err != nil {
			return fmt.Errorf("RenameReader: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return store.ErrReaderNotFound
		}
		return nil
	})
}

func (s *ReaderStore) DeleteReader(ctx context.Context, deviceID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM readers WHERE device_id = ?;
`, deviceID)
		if err != nil {
			return fmt.Errorf("DeleteReader: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return store.ErrReaderNotFound
		}
		return nil
	})
}

func (s *ReaderStore) SetOnline(ctx context.Context, deviceID string, online bool, seen time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}

	var flag int
	if online {
		flag = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Self-announcing readers get a row even before an operator
		// registers them.
		if _, err := tx.ExecContext(ctx, `
INSERT INTO readers(device_id, online, last_seen_at_ms) VALUES (?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  online = excluded.online,
  last_seen_at_ms = excluded.last_seen_at_ms;
`, deviceID, flag, seen.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("SetOnline: %w", err)
		}
		return nil
	})
}
