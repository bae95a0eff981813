// Package store defines what the catalog needs from its backing services:
// an ordered document store with live full-collection snapshots, and a
// blob store for uploaded preview images. Backends live in subpackages.
package store

import (
	"context"

	"github.com/MrSnakeDoc/appvault/internal/domain"
)

// SnapshotFunc receives the whole collection ordered by CreatedAt
// ascending. empty is true when the collection holds no record.
type SnapshotFunc func(apps []domain.App, empty bool)

// ErrorFunc receives a transport or permission failure of a live
// subscription. In-process backends end the subscription after it; a
// backend that reconnects on its own reports each outage once and resumes
// with a full snapshot when it recovers.
type ErrorFunc func(err error)

// Unsubscribe terminates a subscription. Calling it more than once is safe.
type Unsubscribe func()

// DocumentStore is an ordered document collection with server-assigned ids
// and timestamps.
type DocumentStore interface {
	// SubscribeOrdered delivers the current collection, then a new full
	// snapshot after every change. Callbacks for one subscription are never
	// invoked concurrently.
	SubscribeOrdered(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)

	// Create stores fields as a new record and returns its id. CreatedAt is
	// assigned by the store.
	Create(ctx context.Context, fields domain.AppFields) (string, error)

	// Update merges patch into an existing record and sets UpdatedAt.
	// Fails with a WriteError wrapping domain.ErrNotFound if id is unknown.
	Update(ctx context.Context, id string, patch domain.AppPatch) error

	// Delete removes a record. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error

	// BatchCreate creates all records or none. Backends that can check
	// atomically refuse the write with domain.ErrAlreadySeeded when the
	// collection is not empty.
	BatchCreate(ctx context.Context, fields []domain.AppFields) error
}

// BlobStore stores uploaded assets and hands back a public URL.
type BlobStore interface {
	// UploadAsset stores data under a fresh path. filename is only used to
	// derive the extension. Failures are *domain.UploadError.
	UploadAsset(ctx context.Context, data []byte, contentType, filename string) (string, error)
}
