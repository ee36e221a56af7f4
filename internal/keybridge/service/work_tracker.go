package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/keybridge/types"
	"github.com/accesslab/keybridge/internal/rtfanout"
)

// WorkTracker derives clock-in/clock-out transitions from granted scans
// on the designated entrance and exit readers. State machine per
// employee: NOT_WORKING -> WORKING -> NOT_WORKING. Scans on any other
// reader are ignored.
type WorkTracker struct {
	sessions store.WorkSessionStore
	fanout   Broadcaster
	entrance string
	exit     string
	logger   *log.Logger
}

func NewWorkTracker(sessions store.WorkSessionStore, fanout Broadcaster, entranceReader, exitReader string, logger *log.Logger) *WorkTracker {
	return &WorkTracker{
		sessions: sessions,
		fanout:   fanout,
		entrance: entranceReader,
		exit:     exitReader,
		logger:   logger,
	}
}

// HandleAllowed processes a granted scan. An entrance scan with a
// session already open, or an exit scan with none open, is a logged
// no-op; repeated scans must be idempotent, not errors.
func (t *WorkTracker) HandleAllowed(ctx context.Context, employeeID int64, reader string) {
	if reader != t.entrance && reader != t.exit {
		return
	}

	now := time.Now().UTC()

	open, err := t.sessions.FindOpen(ctx, employeeID)
	hasOpen := err == nil
	if err != nil && !errors.Is(err, store.ErrNoOpenSession) {
		t.logger.Printf("worktracker: open-session lookup failed for employee %d: %v", employeeID, err)
		return
	}

	switch reader {
	case t.entrance:
		if hasOpen {
			t.logger.Printf("worktracker: employee %d already working, skipping entrance scan", employeeID)
			return
		}
		if err := t.sessions.OpenSession(ctx, employeeID, now); err != nil {
			if errors.Is(err, store.ErrSessionOpen) {
				t.logger.Printf("worktracker: employee %d already working, skipping entrance scan", employeeID)
				return
			}
			t.logger.Printf("worktracker: opening session for employee %d failed: %v", employeeID, err)
			return
		}
		t.logger.Printf("worktracker: employee %d started work", employeeID)
		t.emit(employeeID, types.ActionStartedWork, now)

	case t.exit:
		if !hasOpen {
			t.logger.Printf("worktracker: no open session for employee %d, skipping exit scan", employeeID)
			return
		}
		if err := t.sessions.CloseSession(ctx, open.SessionID, now); err != nil {
			t.logger.Printf("worktracker: closing session %d failed: %v", open.SessionID, err)
			return
		}
		t.logger.Printf("worktracker: employee %d ended work", employeeID)
		t.emit(employeeID, types.ActionEndedWork, now)
	}
}

func (t *WorkTracker) emit(employeeID int64, action string, at time.Time) {
	t.fanout.Broadcast(rtfanout.NamespaceEmployeesStatus, "status-update", types.StatusUpdateEvent{
		EmployeeID: employeeID,
		Action:     action,
		Timestamp:  at.Format(time.RFC3339),
	})
}
