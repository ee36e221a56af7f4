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

type enrollFixture struct {
	svc       *service.EnrollService
	sessions  *service.EnrollmentStore
	employees *memory.EmployeeStore
	publisher *fakePublisher
}

func newEnrollFixture() *enrollFixture {
	sessions := service.NewEnrollmentStore(30*time.Second, silentLogger())
	employees := memory.NewEmployeeStore(nil)
	publisher := &fakePublisher{}
	svc := service.NewEnrollService(sessions, employees, publisher, "mainEntrance", silentLogger())
	return &enrollFixture{svc: svc, sessions: sessions, employees: employees, publisher: publisher}
}

func TestEnrollStart_PublishesStartCommand(t *testing.T) {
	f := newEnrollFixture()
	f.employees.Put(store.EmployeeRecord{EmployeeID: 7})

	resp, err := f.svc.Start(context.Background(), types.EnrollRequest{EmployeeID: 7, Reader: "deskReader"}, "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !resp.Success || resp.Reader != "deskReader" || resp.SessionID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	cmds := f.publisher.published()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 published command, got %d", len(cmds))
	}
	cmd := cmds[0]
	if cmd.Action != types.ActionStartEnrollment {
		t.Errorf("expected %q, got %q", types.ActionStartEnrollment, cmd.Action)
	}
	if cmd.Reader != "deskReader" || cmd.SessionID != resp.SessionID {
		t.Errorf("command does not match the session: %+v", cmd)
	}
}

func TestEnrollStart_DefaultsReader(t *testing.T) {
	f := newEnrollFixture()
	f.employees.Put(store.EmployeeRecord{EmployeeID: 7})

	resp, err := f.svc.Start(context.Background(), types.EnrollRequest{EmployeeID: 7}, "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp.Reader != "mainEntrance" {
		t.Errorf("expected default reader, got %q", resp.Reader)
	}
}

func TestEnrollStart_UnknownEmployeeRejected(t *testing.T) {
	f := newEnrollFixture()

	_, err := f.svc.Start(context.Background(), types.EnrollRequest{EmployeeID: 99}, "alice")
	if !errors.Is(err, store.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
	if f.sessions.Active() != 0 {
		t.Error("expected no session for a rejected start")
	}
}

func TestEnrollStart_InvalidEmployeeID(t *testing.T) {
	f := newEnrollFixture()

	_, err := f.svc.Start(context.Background(), types.EnrollRequest{EmployeeID: 0}, "alice")
	if !errors.Is(err, service.ErrInvalidEmployeeID) {
		t.Fatalf("expected ErrInvalidEmployeeID, got %v", err)
	}
}

func TestEnrollStart_PublishFailureDiscardsSession(t *testing.T) {
	f := newEnrollFixture()
	f.employees.Put(store.EmployeeRecord{EmployeeID: 7})
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Start(context.Background(), types.EnrollRequest{EmployeeID: 7}, "alice")
	if err == nil {
		t.Fatal("expected publish error to surface")
	}
	if f.sessions.Active() != 0 {
		t.Error("expected the session to be discarded when publish fails")
	}

	// The reader never heard anything; a save must be rejected.
	if _, err := f.sessions.Complete("mainEntrance"); !errors.Is(err, service.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

// replacingPublisher fails every publish, but first claims the reader
// slot for another operator, as would happen in the gap between the
// session start and the publish attempt.
type replacingPublisher struct {
	sessions    *service.EnrollmentStore
	reader      string
	replacement service.EnrollmentSession
}

func (p *replacingPublisher) PublishEnrollCommand(context.Context, types.EnrollCommand) error {
	sess, err := p.sessions.Start(p.reader, 8, "op-b")
	if err != nil {
		return err
	}
	p.replacement = sess
	return errors.New("broker down")
}

func TestEnrollStart_PublishFailureLeavesReplacementSession(t *testing.T) {
	f := newEnrollFixture()
	f.employees.Put(store.EmployeeRecord{EmployeeID: 7})

	pub := &replacingPublisher{sessions: f.sessions, reader: "mainEntrance"}
	svc := service.NewEnrollService(f.sessions, f.employees, pub, "mainEntrance", silentLogger())

	if _, err := svc.Start(context.Background(), types.EnrollRequest{EmployeeID: 7}, "op-a"); err == nil {
		t.Fatal("expected publish error to surface")
	}

	// Compensation removes only its own session; the one started in the
	// gap stays live.
	got, err := f.sessions.Complete("mainEntrance")
	if err != nil {
		t.Fatalf("expected the replacement session to survive: %v", err)
	}
	if got.SessionID != pub.replacement.SessionID {
		t.Errorf("expected session %s, got %s", pub.replacement.SessionID, got.SessionID)
	}
	if got.EmployeeID != 8 {
		t.Errorf("expected employee 8, got %d", got.EmployeeID)
	}
}

func TestEnrollCancel_ConsumesSessionAndPublishes(t *testing.T) {
	f := newEnrollFixture()
	f.employees.Put(store.EmployeeRecord{EmployeeID: 7})

	if _, err := f.svc.Start(context.Background(), types.EnrollRequest{EmployeeID: 7}, "alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.svc.Cancel(context.Background(), "mainEntrance"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.sessions.Active() != 0 {
		t.Error("expected no live sessions after cancel")
	}

	cmds := f.publisher.published()
	if len(cmds) != 2 {
		t.Fatalf("expected start + cancel commands, got %d", len(cmds))
	}
	if cmds[1].Action != types.ActionCancelEnrollment {
		t.Errorf("expected %q, got %q", types.ActionCancelEnrollment, cmds[1].Action)
	}
}

func TestEnrollCancel_NoSession(t *testing.T) {
	f := newEnrollFixture()

	if err := f.svc.Cancel(context.Background(), "mainEntrance"); !errors.Is(err, service.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
