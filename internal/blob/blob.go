// Package blob defines the boundary around file bytes kept in object storage.
//
// The relational row only carries a key; everything else about a stored file
// lives behind this interface. Keeping the interface this small is deliberate:
// the lifecycle service needs exactly three verbs, and tests swap in an
// in-memory implementation without any S3 machinery.
package blob

import (
	"context"
	"time"
)

// Object describes bytes to be stored under a key.
type Object struct {
	ContentType string
	Metadata    map[string]string
	Data        []byte
}

// Store is the object-storage boundary.
//
// All methods wrap transport errors as apperror.ErrStorage. Delete does not
// distinguish "already absent" from success — callers treat any non-error
// return as the blob being gone.
type Store interface {
	// Put stores obj under key. There is no partial-write recovery: on error
	// the caller must assume nothing usable exists at key.
	Put(ctx context.Context, key string, obj Object) error

	// Delete removes the blob at key.
	Delete(ctx context.Context, key string) error

	// SignedURL returns a time-limited, credential-free read URL for key.
	// Regenerated on every call; never cached.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
