// Package archive provides an optional off-site sink that the propagator
// replays canonical uploads and deletes into. Replication to the archive is
// best-effort: a failed archive write never fails the originating call.
package archive

import "context"

// Store receives a copy of every canonical file write and delete.
//
// Keys are slash-separated "<owner>/<relative-path>" strings.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// NopStore discards everything. Used when archiving is disabled.
type NopStore struct{}

func (NopStore) Put(ctx context.Context, key string, data []byte) error { return nil }

func (NopStore) Delete(ctx context.Context, key string) error { return nil }
