// Package storage persists raw file bytes behind an opaque storage
// reference. Two interchangeable backends exist: the local filesystem and
// an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no blob exists for a storage reference.
	ErrNotFound = errors.New("blob not found")
	// ErrPathEscape is returned when a filename would resolve to a
	// destination outside the configured storage root.
	ErrPathEscape = errors.New("path escapes storage root")
)

// PutResult describes a successfully persisted blob. Size and Checksum are
// computed from the exact bytes written, not from the client's declaration.
type PutResult struct {
	// Ref is the backend-assigned locator for the blob.
	Ref string
	// Size is the number of bytes persisted.
	Size int64
	// Checksum is the lowercase hex SHA-256 digest of the persisted bytes.
	Checksum string
}

// BlobStore stores and retrieves raw file bytes. After Put returns, Get on
// the returned reference yields byte-identical content. Delete reports
// ErrNotFound when called on a reference that no longer exists.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader) (*PutResult, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// storedName builds a collision-resistant stored name from a random token
// and the original filename. Whitespace is flattened; path separators are
// intentionally preserved so that escape attempts are detected rather than
// silently rewritten.
func storedName(original string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, original)
	return uuid.New().String() + "_" + sanitized
}
