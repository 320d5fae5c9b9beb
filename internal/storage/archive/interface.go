// Package archive keeps JSON snapshots of each fetch cycle in cold storage.
package archive

import "context"

// Storage is a flat key/value blob store addressed by slash-separated paths.
type Storage interface {
	// Write stores data at path, replacing what was there.
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves the data at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns every path under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at path.
	Delete(ctx context.Context, path string) error

	// Exists checks whether path holds data.
	Exists(ctx context.Context, path string) (bool, error)
}
