package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a minimal fixture set for local development: two
// designated readers and one employee with an enrolled card. Idempotent.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	for _, r := range []struct {
		deviceID, name, location string
	}{
		{"esp32-entrance", "mainEntrance", "Front door"},
		{"esp32-exit", "mainExit", "Back door"},
	} {
		if _, err := db.ExecContext(ctx, `
INSERT INTO readers(device_id, name, location, online, last_seen_at_ms)
VALUES (?, ?, ?, 0, ?)
ON CONFLICT(device_id) DO UPDATE SET
  name = excluded.name,
  location = excluded.location;`,
			r.deviceID, r.name, r.location, now); err != nil {
			return fmt.Errorf("seed readers: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO employees(employee_id, first_name, last_name, job_title, department)
VALUES (1, 'Dev', 'Tester', 'Engineer', 'IT');`); err != nil {
		return fmt.Errorf("seed employees: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO tags(tag_id, secret, employee_id)
VALUES ('DEADBEEF', NULL, 1);`); err != nil {
		return fmt.Errorf("seed tags: %w", err)
	}

	return nil
}
