package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/service"
	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/keybridge/store/memory"
	"github.com/accesslab/keybridge/internal/keybridge/types"
)

func newTracker() (*service.WorkTracker, *memory.WorkSessionStore, *recordingBroadcaster) {
	sessions := memory.NewWorkSessionStore()
	fanout := &recordingBroadcaster{}
	tracker := service.NewWorkTracker(sessions, fanout, "mainEntrance", "mainExit", silentLogger())
	return tracker, sessions, fanout
}

func TestWorkTracker_EntranceOpensSession(t *testing.T) {
	tracker, sessions, fanout := newTracker()

	tracker.HandleAllowed(context.Background(), 42, "mainEntrance")

	recs := sessions.Sessions()
	if len(recs) != 1 {
		t.Fatalf("expected 1 session, got %d", len(recs))
	}
	if recs[0].ShiftEnd != nil {
		t.Error("expected the session to be open")
	}

	calls := fanout.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(calls))
	}
	ev, ok := calls[0].Payload.(types.StatusUpdateEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", calls[0].Payload)
	}
	if ev.Action != types.ActionStartedWork {
		t.Errorf("expected %q, got %q", types.ActionStartedWork, ev.Action)
	}
	if ev.EmployeeID != 42 {
		t.Errorf("expected employee 42, got %d", ev.EmployeeID)
	}
}

func TestWorkTracker_ExitClosesSession(t *testing.T) {
	tracker, sessions, fanout := newTracker()

	tracker.HandleAllowed(context.Background(), 42, "mainEntrance")
	tracker.HandleAllowed(context.Background(), 42, "mainExit")

	recs := sessions.Sessions()
	if len(recs) != 1 {
		t.Fatalf("expected 1 session, got %d", len(recs))
	}
	if recs[0].ShiftEnd == nil {
		t.Error("expected the session to be closed")
	}

	calls := fanout.calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(calls))
	}
	ev := calls[1].Payload.(types.StatusUpdateEvent)
	if ev.Action != types.ActionEndedWork {
		t.Errorf("expected %q, got %q", types.ActionEndedWork, ev.Action)
	}
}

func TestWorkTracker_RepeatedEntranceIsNoOp(t *testing.T) {
	tracker, sessions, fanout := newTracker()

	tracker.HandleAllowed(context.Background(), 42, "mainEntrance")
	tracker.HandleAllowed(context.Background(), 42, "mainEntrance")

	if n := len(sessions.Sessions()); n != 1 {
		t.Fatalf("expected 1 session after repeated entrance scans, got %d", n)
	}
	if n := len(fanout.calls()); n != 1 {
		t.Fatalf("expected 1 broadcast after repeated entrance scans, got %d", n)
	}
}

func TestWorkTracker_SessionStoreRejectsSecondOpen(t *testing.T) {
	sessions := memory.NewWorkSessionStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := sessions.OpenSession(ctx, 42, now); err != nil {
		t.Fatalf("first OpenSession: %v", err)
	}
	if err := sessions.OpenSession(ctx, 42, now); !errors.Is(err, store.ErrSessionOpen) {
		t.Fatalf("expected ErrSessionOpen on second open, got %v", err)
	}

	var open int
	for _, rec := range sessions.Sessions() {
		if rec.ShiftEnd == nil {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly 1 open session, got %d", open)
	}
}

func TestWorkTracker_ExitWithoutSessionIsNoOp(t *testing.T) {
	tracker, sessions, fanout := newTracker()

	tracker.HandleAllowed(context.Background(), 42, "mainExit")

	if n := len(sessions.Sessions()); n != 0 {
		t.Fatalf("expected no sessions, got %d", n)
	}
	if n := len(fanout.calls()); n != 0 {
		t.Fatalf("expected no broadcasts, got %d", n)
	}
}

func TestWorkTracker_OtherReadersIgnored(t *testing.T) {
	tracker, sessions, fanout := newTracker()

	tracker.HandleAllowed(context.Background(), 42, "serverRoom")

	if n := len(sessions.Sessions()); n != 0 {
		t.Fatalf("expected no sessions for a non-designated reader, got %d", n)
	}
	if n := len(fanout.calls()); n != 0 {
		t.Fatalf("expected no broadcasts, got %d", n)
	}
}

func TestWorkTracker_FullCycleTwice(t *testing.T) {
	tracker, sessions, _ := newTracker()
	ctx := context.Background()

	tracker.HandleAllowed(ctx, 42, "mainEntrance")
	tracker.HandleAllowed(ctx, 42, "mainExit")
	tracker.HandleAllowed(ctx, 42, "mainEntrance")

	recs := sessions.Sessions()
	if len(recs) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(recs))
	}
	if recs[0].ShiftEnd == nil {
		t.Error("expected the first session to be closed")
	}
	if recs[1].ShiftEnd != nil {
		t.Error("expected the second session to be open")
	}
}
