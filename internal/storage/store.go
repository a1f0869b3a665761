// Package storage persists raw audio payloads and derives their names.
package storage

import (
	"context"
	"io"
	"time"
)

// Object describes one stored payload.
type Object struct {
	// Ref is the value recorded in audio_samples.filename.
	Ref string
	// ModTime is the last write time.
	ModTime time.Time
}

// Store is a flat namespace of audio payloads addressed by reference.
type Store interface {
	// Put writes r under name and returns the reference to record.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	// Open returns the payload for ref; common.ErrNotFound if it is absent.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// List returns every stored payload.
	List(ctx context.Context) ([]Object, error)
	// Stat describes the payload for ref; common.ErrNotFound if it is absent.
	Stat(ctx context.Context, ref string) (Object, error)
	// Delete removes the payload for ref.
	Delete(ctx context.Context, ref string) error
}
