package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/store"
	sqlitestore "github.com/accesslab/keybridge/internal/keybridge/store/sqlite"
)

func TestAccessEventStore_RecordAndList(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	es := sqlitestore.NewAccessEventStore(conn, w)
	ctx := context.Background()

	emp := int64(7)
	decided := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	id1, err := es.RecordEvent(ctx, store.AccessEventRecord{
		TagID:      "AA11",
		Reader:     "mainEntrance",
		Granted:    true,
		Reason:     "allowed",
		EmployeeID: &emp,
		DecidedAt:  decided,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if id1 <= 0 {
		t.Fatalf("expected an assigned id, got %d", id1)
	}

	id2, err := es.RecordEvent(ctx, store.AccessEventRecord{
		TagID:     "UNKNOWN",
		Granted:   false,
		Reason:    "tag not registered",
		DecidedAt: decided.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("RecordEvent deny: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("expected monotonically increasing ids, got %d then %d", id1, id2)
	}

	events, err := es.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// Newest first.
	if events[0].TagID != "UNKNOWN" || events[0].Granted {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if events[1].TagID != "AA11" || !events[1].Granted {
		t.Errorf("unexpected second event %+v", events[1])
	}
	if events[1].EmployeeID == nil || *events[1].EmployeeID != 7 {
		t.Errorf("expected employee 7 on the granted event, got %v", events[1].EmployeeID)
	}
	if !events[1].DecidedAt.Equal(decided) {
		t.Errorf("expected decided_at round trip, got %s", events[1].DecidedAt)
	}
}

func TestAccessEventStore_ListLimit(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	es := sqlitestore.NewAccessEventStore(conn, w)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := es.RecordEvent(ctx, store.AccessEventRecord{
			TagID:   "AA11",
			Granted: false,
			Reason:  "tag not registered",
		}); err != nil {
			t.Fatalf("RecordEvent %d: %v", i, err)
		}
	}

	events, err := es.ListEvents(ctx, 3)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}
