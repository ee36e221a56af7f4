package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/keybridge/types"
)

var (
	ErrMissingFields = errors.New("reader and tagId are required")
	ErrInvalidSecret = errors.New("secret must be 8 to 255 characters")
)

const (
	minSecretLength = 8
	maxSecretLength = 255
)

// TagService persists the results of enrollment and manages the tag
// lifecycle afterwards (secret rotation, deletion).
type TagService struct {
	tags        store.TagStore
	enrollments *EnrollmentStore
	logger      *log.Logger
}

func NewTagService(tags store.TagStore, enrollments *EnrollmentStore, logger *log.Logger) *TagService {
	return &TagService{
		tags:        tags,
		enrollments: enrollments,
		logger:      logger,
	}
}

// SaveEnrolled consumes the reader's enrollment session and writes the
// tag. A save for a reader with no live session is rejected with
// ErrNoSession; a tag already bound elsewhere surfaces ErrTagAssigned.
// Either way the attempt is terminal: the session is gone and the
// operator must restart the workflow.
func (s *TagService) SaveEnrolled(ctx context.Context, req types.SaveTagRequest) (types.SaveTagResponse, error) {
	reader := strings.TrimSpace(req.Reader)
	tagID := strings.TrimSpace(req.TagID)
	if reader == "" || tagID == "" {
		return types.SaveTagResponse{}, ErrMissingFields
	}

	sess, err := s.enrollments.Complete(reader)
	if err != nil {
		s.logger.Printf("tags: save rejected, no enrollment session for reader %s", reader)
		return types.SaveTagResponse{}, err
	}

	rec := store.TagRecord{
		TagID:      tagID,
		EmployeeID: &sess.EmployeeID,
	}
	if secret := strings.TrimSpace(req.TagSecret); secret != "" {
		rec.Secret = &secret
	}

	if err := s.tags.SaveEnrolled(ctx, rec); err != nil {
		return types.SaveTagResponse{}, err
	}

	s.logger.Printf("tags: card %s assigned to employee %d (reader %s, secret written=%t)",
		tagID, sess.EmployeeID, reader, req.SecretWritten)

	return types.SaveTagResponse{
		Success:    true,
		TagID:      tagID,
		EmployeeID: sess.EmployeeID,
	}, nil
}

// UpdateSecret rotates a tag's shared secret.
func (s *TagService) UpdateSecret(ctx context.Context, tagID, newSecret string) error {
	tagID = strings.TrimSpace(tagID)
	newSecret = strings.TrimSpace(newSecret)
	if tagID == "" {
		return ErrMissingFields
	}
	if len(newSecret) < minSecretLength || len(newSecret) > maxSecretLength {
		return ErrInvalidSecret
	}
	return s.tags.UpdateSecret(ctx, tagID, newSecret)
}

// DeleteTag removes a card. Deletion is independent of the owning
// employee; the employee record is untouched.
func (s *TagService) DeleteTag(ctx context.Context, tagID string) error {
	tagID = strings.TrimSpace(tagID)
	if tagID == "" {
		return ErrMissingFields
	}
	if err := s.tags.DeleteTag(ctx, tagID); err != nil {
		return err
	}
	s.logger.Printf("tags: card %s deleted", tagID)
	return nil
}

func (s *TagService) ListTags(ctx context.Context) ([]store.TagRecord, error) {
	return s.tags.ListTags(ctx)
}
