package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/keybridge/types"
)

var ErrInvalidEmployeeID = errors.New("employeeId is required")

// EnrollPublisher delivers enrollment start/cancel commands to the
// reader, with at-least-once intent. A returned error means the command
// never reached the broker and the caller must compensate.
type EnrollPublisher interface {
	PublishEnrollCommand(ctx context.Context, cmd types.EnrollCommand) error
}

// EnrollService runs the operator-facing enrollment workflow: create a
// session, tell the reader to start listening, and let the result come
// back asynchronously through the bridge.
type EnrollService struct {
	sessions      *EnrollmentStore
	employees     store.EmployeeStore
	publisher     EnrollPublisher
	defaultReader string
	logger        *log.Logger
}

func NewEnrollService(
	sessions *EnrollmentStore,
	employees store.EmployeeStore,
	publisher EnrollPublisher,
	defaultReader string,
	logger *log.Logger,
) *EnrollService {
	return &EnrollService{
		sessions:      sessions,
		employees:     employees,
		publisher:     publisher,
		defaultReader: defaultReader,
		logger:        logger,
	}
}

// Start creates the enrollment session and publishes the start command.
// If the publish fails the session is discarded; a reader that never
// heard the command must not have a session waiting for it.
func (s *EnrollService) Start(ctx context.Context, req types.EnrollRequest, initiatedBy string) (types.EnrollResponse, error) {
	if req.EmployeeID <= 0 {
		return types.EnrollResponse{}, ErrInvalidEmployeeID
	}

	reader := strings.TrimSpace(req.Reader)
	if reader == "" {
		reader = s.defaultReader
	}

	if _, err := s.employees.GetEmployee(ctx, req.EmployeeID); err != nil {
		return types.EnrollResponse{}, err
	}

	sess, err := s.sessions.Start(reader, req.EmployeeID, initiatedBy)
	if err != nil {
		return types.EnrollResponse{}, err
	}

	cmd := types.EnrollCommand{
		Action:    types.ActionStartEnrollment,
		Reader:    reader,
		SessionID: sess.SessionID,
	}
	if err := s.publisher.PublishEnrollCommand(ctx, cmd); err != nil {
		// Compensate: the reader never got the command, so the session
		// must not linger until its TTL. Keyed by session id so a newer
		// session on the same reader is left alone.
		_ = s.sessions.CancelIfCurrent(reader, sess.SessionID)
		return types.EnrollResponse{}, fmt.Errorf("publish enrollment command: %w", err)
	}

	s.logger.Printf("enrollment started: reader=%s employee=%d session=%s by=%s",
		reader, req.EmployeeID, sess.SessionID, initiatedBy)

	return types.EnrollResponse{
		Success:      true,
		Reader:       reader,
		SessionID:    sess.SessionID,
		Instructions: "Scan the card on the reader; the result arrives on the real-time channel.",
	}, nil
}

// Cancel drops the reader's session and tells the reader to stop
// listening. Missing sessions surface as ErrNoSession.
func (s *EnrollService) Cancel(ctx context.Context, reader string) error {
	sess, err := s.sessions.Cancel(reader)
	if err != nil {
		return err
	}

	cmd := types.EnrollCommand{
		Action:    types.ActionCancelEnrollment,
		Reader:    reader,
		SessionID: sess.SessionID,
	}
	if err := s.publisher.PublishEnrollCommand(ctx, cmd); err != nil {
		// The session is already gone; the reader will time out on its
		// own. Log and report.
		s.logger.Printf("enrollment: cancel publish failed for reader %s: %v", reader, err)
		return fmt.Errorf("publish cancel command: %w", err)
	}
	return nil
}
