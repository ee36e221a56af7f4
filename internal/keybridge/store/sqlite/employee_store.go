package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type EmployeeStore struct {
	db *sql.DB
}

func NewEmployeeStore(db *sql.DB) *EmployeeStore {
	return &EmployeeStore{db: db}
}

func (s *EmployeeStore) GetEmployee(ctx context.Context, employeeID int64) (store.EmployeeRecord, error) {
	var rec store.EmployeeRecord
	var jobTitle, department sql.NullString

	err := s.db.QueryRowContext(ctx, `
SELECT employee_id, first_name, last_name, job_title, department
FROM employees WHERE employee_id = ?;
`, employeeID).Scan(&rec.EmployeeID, &rec.FirstName, &rec.LastName, &jobTitle, &department)

	if err == sql.ErrNoRows {
		return store.EmployeeRecord{}, store.ErrEmployeeNotFound
	}
	if err != nil {
		return store.EmployeeRecord{}, fmt.Errorf("GetEmployee query: %w", err)
	}

	rec.JobTitle = jobTitle.String
	rec.Department = department.String
	return rec, nil
}

func (s *EmployeeStore) InfoByTag(ctx context.Context, tagID string) (store.EmployeeRecord, error) {
	var rec store.EmployeeRecord
	var jobTitle, department sql.NullString

	err := s.db.QueryRowContext(ctx, `
SELECT e.employee_id, e.first_name, e.last_name, e.job_title, e.department
FROM employees e
JOIN tags t ON t.employee_id = e.employee_id
WHERE t.tag_id = ?;
`, tagID).Scan(&rec.EmployeeID, &rec.FirstName, &rec.LastName, &jobTitle, &department)

	if err == sql.ErrNoRows {
		return store.EmployeeRecord{}, store.ErrEmployeeNotFound
	}
	if err != nil {
		return store.EmployeeRecord{}, fmt.Errorf("InfoByTag query: %w", err)
	}

	rec.JobTitle = jobTitle.String
	rec.Department = department.String
	return rec, nil
}
