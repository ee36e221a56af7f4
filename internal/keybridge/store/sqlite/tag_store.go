package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	dbpkg "github.com/accesslab/keybridge/internal/db"
	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type TagStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTagStore(db *sql.DB, writer *dbpkg.Worker) *TagStore {
	return &TagStore{db: db, writer: writer}
}

func (s *TagStore) GetTag(ctx context.Context, tagID string) (store.TagRecord, error) {
	tagID = strings.TrimSpace(tagID)

	var rec store.TagRecord
	var secret sql.NullString
	var employeeID sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
SELECT tag_id, secret, employee_id FROM tags WHERE tag_id = ?;
`, tagID).Scan(&rec.TagID, &secret, &employeeID)

	if err == sql.ErrNoRows {
		return store.TagRecord{}, store.ErrTagNotFound
	}
	if err != nil {
		return store.TagRecord{}, fmt.Errorf("GetTag query: %w", err)
	}

	if secret.Valid {
		rec.Secret = &secret.String
	}
	if employeeID.Valid {
		rec.EmployeeID = &employeeID.Int64
	}
	return rec, nil
}

func (s *TagStore) SaveEnrolled(ctx context.Context, rec store.TagRecord) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var existingEmployee sql.NullInt64
		err := tx.QueryRowContext(ctx, `
SELECT employee_id FROM tags WHERE tag_id = ?;
`, rec.TagID).Scan(&existingEmployee)

		switch {
		case err == sql.ErrNoRows:
			// New tag.
		case err != nil:
			return fmt.Errorf("SaveEnrolled lookup: %w", err)
		default:
			if existingEmployee.Valid && rec.EmployeeID != nil &&
				existingEmployee.Int64 != *rec.EmployeeID {
				return store.ErrTagAssigned
			}
		}

		var secret any
		if rec.Secret != nil {
			secret = *rec.Secret
		}
		var employeeID any
		if rec.EmployeeID != nil {
			employeeID = *rec.EmployeeID
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO tags(tag_id, secret, employee_id) VALUES (?, ?, ?)
ON CONFLICT(tag_id) DO UPDATE SET
  secret = excluded.secret,
  employee_id = excluded.employee_id;
`, rec.TagID, secret, employeeID); err != nil {
			return fmt.Errorf("SaveEnrolled upsert: %w", err)
		}

		return nil
	})
}

func (s *TagStore) UpdateSecret(ctx context.Context, tagID, secret string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE tags SET secret = ? WHERE tag_id = ?;
`, secret, tagID)
		if err != nil {
			return fmt.Errorf("UpdateSecret: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return store.ErrTagNotFound
		}
		return nil
	})
}

func (s *TagStore) DeleteTag(ctx context.Context, tagID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM tags WHERE tag_id = ?;
`, tagID)
		if err != nil {
			return fmt.Errorf("DeleteTag: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return store.ErrTagNotFound
		}
		return nil
	})
}

func (s *TagStore) ListTags(ctx context.Context) ([]store.TagRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tag_id, secret, employee_id FROM tags ORDER BY tag_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListTags query: %w", err)
	}
	defer rows.Close()

	var out []store.TagRecord
	for rows.Next() {
		var rec store.TagRecord
		var secret sql.NullString
		var employeeID sql.NullInt64
		if err := rows.Scan(&rec.TagID, &secret, &employeeID); err != nil {
			return nil, fmt.Errorf("ListTags scan: %w", err)
		}
		if secret.Valid {
			v := secret.String
			rec.Secret = &v
		}
		if employeeID.Valid {
			v := employeeID.Int64
			rec.EmployeeID = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
