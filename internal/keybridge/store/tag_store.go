package store

import (
	"context"
	"errors"
)

var (
	ErrTagNotFound = errors.New("tag not found")

	// ErrTagAssigned is returned when an enrollment save would rebind a
	// tag that already belongs to a different employee.
	ErrTagAssigned = errors.New("tag assigned to another employee")
)

// TagRecord is one enrolled card. Secret is nil for cards enrolled
// without a shared secret; EmployeeID is nil for unbound cards.
type TagRecord struct {
	TagID      string
	Secret     *string
	EmployeeID *int64
}

type TagStore interface {
	// GetTag returns ErrTagNotFound for unknown tag ids.
	GetTag(ctx context.Context, tagID string) (TagRecord, error)

	// SaveEnrolled inserts the tag (or re-binds an unassigned existing
	// tag) to the employee. Returns ErrTagAssigned if the tag belongs
	// to someone else.
	SaveEnrolled(ctx context.Context, rec TagRecord) error

	// UpdateSecret rotates the shared secret for an existing tag.
	UpdateSecret(ctx context.Context, tagID, secret string) error

	DeleteTag(ctx context.Context, tagID string) error

	ListTags(ctx context.Context) ([]TagRecord, error)
}
