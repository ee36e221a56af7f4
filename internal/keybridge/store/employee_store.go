package store

import (
	"context"
	"errors"
)

var ErrEmployeeNotFound = errors.New("employee not found")

type EmployeeRecord struct {
	EmployeeID int64
	FirstName  string
	LastName   string
	JobTitle   string
	Department string
}

type EmployeeStore interface {
	// GetEmployee returns ErrEmployeeNotFound for unknown ids.
	GetEmployee(ctx context.Context, employeeID int64) (EmployeeRecord, error)

	// InfoByTag resolves the employee owning a tag, for access-log
	// enrichment. Returns ErrEmployeeNotFound when the tag is unbound
	// or unknown.
	InfoByTag(ctx context.Context, tagID string) (EmployeeRecord, error)
}
