package storage

import "context"

type TimelineStore interface {
	// Append adds entry to the end of the timeline. Concurrent calls are
	// serialized; no append is lost.
	Append(ctx context.Context, entry Entry) error
	// List returns all entries in insertion order. The result is never nil.
	List(ctx context.Context) ([]Entry, error)
	Close() error
}
