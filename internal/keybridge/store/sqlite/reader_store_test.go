package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/store"
	sqlitestore "github.com/accesslab/keybridge/internal/keybridge/store/sqlite"
)

func TestReaderStore_UpsertPreservesNameAndLocation(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	rs := sqlitestore.NewReaderStore(conn, w)
	ctx := context.Background()

	if err := rs.UpsertReader(ctx, store.ReaderRecord{
		DeviceID: "esp32-entrance",
		Name:     "mainEntrance",
		Location: "Front door",
	}); err != nil {
		t.Fatalf("UpsertReader: %v", err)
	}

	// A controller self-announcement carries no name or location; the
	// operator-assigned ones must survive.
	now := time.Now().UTC()
	if err := rs.UpsertReader(ctx, store.ReaderRecord{
		DeviceID: "esp32-entrance",
		Online:   true,
		LastSeen: &now,
	}); err != nil {
		t.Fatalf("UpsertReader announce: %v", err)
	}

	rec, err := rs.GetReader(ctx, "esp32-entrance")
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	if rec.Name != "mainEntrance" || rec.Location != "Front door" {
		t.Errorf("expected name/location preserved, got %+v", rec)
	}
	if !rec.Online || rec.LastSeen == nil {
		t.Errorf("expected online with last_seen, got %+v", rec)
	}
}

func TestReaderStore_SetOnlineRegistersUnknownReader(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	rs := sqlitestore.NewReaderStore(conn, w)
	ctx := context.Background()

	if err := rs.SetOnline(ctx, "esp32-new", true, time.Now().UTC()); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}

	rec, err := rs.GetReader(ctx, "esp32-new")
	if err != nil {
		t.Fatalf("expected a row for the self-announced reader: %v", err)
	}
	if !rec.Online {
		t.Error("expected the reader online")
	}
}

func TestReaderStore_RenameAndDelete(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	rs := sqlitestore.NewReaderStore(conn, w)
	ctx := context.Background()

	if err := rs.RenameReader(ctx, "nope", "x"); !errors.Is(err, store.ErrReaderNotFound) {
		t.Fatalf("expected ErrReaderNotFound, got %v", err)
	}

	if err := rs.UpsertReader(ctx, store.ReaderRecord{DeviceID: "esp32-exit", Name: "mainExit"}); err != nil {
		t.Fatalf("UpsertReader: %v", err)
	}
	if err := rs.RenameReader(ctx, "esp32-exit", "backDoor"); err != nil {
		t.Fatalf("RenameReader: %v", err)
	}

	rec, err := rs.GetReader(ctx, "esp32-exit")
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	if rec.Name != "backDoor" {
		t.Errorf("expected renamed reader, got %q", rec.Name)
	}

	if err := rs.DeleteReader(ctx, "esp32-exit"); err != nil {
		t.Fatalf("DeleteReader: %v", err)
	}
	if err := rs.DeleteReader(ctx, "esp32-exit"); !errors.Is(err, store.ErrReaderNotFound) {
		t.Fatalf("expected ErrReaderNotFound on double delete, got %v", err)
	}
}
