package store

import (
	"context"
	"errors"
	"time"
)

var ErrReaderNotFound = errors.New("reader not found")

type ReaderRecord struct {
	DeviceID string
	Name     string
	Location string
	Online   bool
	LastSeen *time.Time
}

type ReaderStore interface {
	GetReader(ctx context.Context, deviceID string) (ReaderRecord, error)

	ListReaders(ctx context.Context) ([]ReaderRecord, error)

	// UpsertReader registers a reader (operator add or controller
	// self-announcement). Existing rows keep their name/location unless
	// the incoming record sets them.
	UpsertReader(ctx context.Context, rec ReaderRecord) error

	RenameReader(ctx context.Context, deviceID, name string) error

	DeleteReader(ctx context.Context, deviceID string) error

	// SetOnline flips the online flag and stamps last_seen.
	SetOnline(ctx context.Context, deviceID string, online bool, seen time.Time) error
}
