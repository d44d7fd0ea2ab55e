// Package metadata maintains the durable index of stored files: one record
// per blob, keyed by the human-facing original filename and by a stable
// generated id.
package metadata

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record matches the lookup key.
var ErrNotFound = errors.New("metadata not found")

// FileMetadata describes one stored file. Records are immutable once saved;
// the only mutation is deletion.
type FileMetadata struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	StorageRef   string    `json:"-"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Store is the durable metadata index. Uniqueness of OriginalName is a
// policy decision owned by the engine, not a store-level constraint;
// StorageRef uniqueness is a hard invariant enforced here.
type Store interface {
	// Save persists the record, assigning its ID.
	Save(ctx context.Context, md *FileMetadata) error
	FindByOriginalName(ctx context.Context, name string) (*FileMetadata, error)
	FindByID(ctx context.Context, id string) (*FileMetadata, error)
	ExistsByOriginalName(ctx context.Context, name string) (bool, error)
	ListAll(ctx context.Context) ([]FileMetadata, error)
	Delete(ctx context.Context, md *FileMetadata) error
}
