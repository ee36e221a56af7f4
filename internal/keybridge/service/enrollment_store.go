package service

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	// ErrNoSession means no unexpired enrollment session exists for the
	// reader; a completed or timed-out session is indistinguishable from
	// one that never existed.
	ErrNoSession = errors.New("no active enrollment session")

	// ErrEmployeeEnrolling rejects a second concurrent session for the
	// same employee on a different reader. Restarting on the same
	// reader is allowed and follows last-writer-wins.
	ErrEmployeeEnrolling = errors.New("employee already enrolling on another reader")
)

// EnrollmentSession tracks one in-flight enrollment attempt on a reader.
type EnrollmentSession struct {
	ReaderKey   string
	EmployeeID  int64
	SessionID   string
	CreatedAt   time.Time
	InitiatedBy string
}

type enrollmentEntry struct {
	session EnrollmentSession
	timer   *time.Timer
}

// EnrollmentStore keeps at most one live enrollment session per reader.
// Sessions expire after the configured TTL and are removed by their own
// timer; starting a new session for a reader overwrites any prior one.
type EnrollmentStore struct {
	ttl    time.Duration
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*enrollmentEntry
}

func NewEnrollmentStore(ttl time.Duration, logger *log.Logger) *EnrollmentStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &EnrollmentStore{
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*enrollmentEntry),
	}
}

// Start creates a session for the reader. A prior session on the same
// reader is invalidated (last writer wins); a live session for the same
// employee on a different reader is rejected.
func (s *EnrollmentStore) Start(readerKey string, employeeID int64, initiatedBy string) (EnrollmentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.sessions {
		if key != readerKey && e.session.EmployeeID == employeeID {
			return EnrollmentSession{}, ErrEmployeeEnrolling
		}
	}

	if prev, ok := s.sessions[readerKey]; ok {
		prev.timer.Stop()
		s.logger.Printf("enrollment: overwriting session %s on reader %s", prev.session.SessionID, readerKey)
	}

	now := time.Now().UTC()
	sess := EnrollmentSession{
		ReaderKey:   readerKey,
		EmployeeID:  employeeID,
		SessionID:   fmt.Sprintf("%s_%d", readerKey, now.UnixNano()),
		CreatedAt:   now,
		InitiatedBy: initiatedBy,
	}

	sessionID := sess.SessionID
	timer := time.AfterFunc(s.ttl, func() { s.expire(readerKey, sessionID) })
	s.sessions[readerKey] = &enrollmentEntry{session: sess, timer: timer}

	return sess, nil
}

// Complete removes and returns the reader's session. Returns ErrNoSession
// when none is live; callers must reject the save in that case.
func (s *EnrollmentStore) Complete(readerKey string) (EnrollmentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[readerKey]
	if !ok {
		return EnrollmentSession{}, ErrNoSession
	}
	e.timer.Stop()
	delete(s.sessions, readerKey)
	return e.session, nil
}

// Cancel is Complete under a different name: an operator abandoning the
// workflow consumes the session the same way a save does.
func (s *EnrollmentStore) Cancel(readerKey string) (EnrollmentSession, error) {
	return s.Complete(readerKey)
}

// CancelIfCurrent removes the reader's session only while it is still
// the given one, like the expire guard. Compensation paths use it so a
// session started in the meantime by someone else survives.
func (s *EnrollmentStore) CancelIfCurrent(readerKey, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[readerKey]
	if !ok || e.session.SessionID != sessionID {
		return ErrNoSession
	}
	e.timer.Stop()
	delete(s.sessions, readerKey)
	return nil
}

// Active reports how many sessions are currently live.
func (s *EnrollmentStore) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// expire removes the session when its TTL elapses. The session id guard
// keeps a stale timer from killing a newer session on the same reader.
func (s *EnrollmentStore) expire(readerKey, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[readerKey]
	if !ok || e.session.SessionID != sessionID {
		return
	}
	delete(s.sessions, readerKey)
	s.logger.Printf("enrollment: session timeout for reader %s (session %s)", readerKey, sessionID)
}
