// Package engine orchestrates validation, hashing, blob storage and
// metadata bookkeeping for every store, retrieve, delete and list
// operation.
package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"filedepot/internal/metadata"
	"filedepot/internal/storage"
	"filedepot/internal/validation"
)

// Submission is one incoming upload. Content is read exactly once per
// Store call; callers must not reuse the reader afterwards.
type Submission struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Options carries the engine-level policy toggles.
type Options struct {
	// AllowDuplicates permits multiple records sharing an original name.
	AllowDuplicates bool
	// VerifyOnRead recomputes the checksum on every Retrieve and treats a
	// mismatch as a consistency fault. Costs a full buffered read.
	VerifyOnRead bool
}

// Engine composes the validator, blob store and metadata store. It is safe
// for concurrent use.
type Engine struct {
	blobs     storage.BlobStore
	meta      metadata.Store
	validator *validation.Validator
	opts      Options
	names     *nameLocks
}

func New(blobs storage.BlobStore, meta metadata.Store, validator *validation.Validator, opts Options) *Engine {
	return &Engine{
		blobs:     blobs,
		meta:      meta,
		validator: validator,
		opts:      opts,
		names:     newNameLocks(),
	}
}

// Store validates the submission, persists its bytes, and commits a
// metadata record. The duplicate check and the commit run under a per-name
// lock, so two concurrent stores of the same name under a no-duplicates
// policy cannot both succeed.
func (e *Engine) Store(ctx context.Context, sub *Submission) (*metadata.FileMetadata, error) {
	if sub == nil || sub.Name == "" {
		return nil, fmt.Errorf("%w: missing submission", validation.ErrInvalidSubmission)
	}

	e.names.acquire(sub.Name)
	defer e.names.release(sub.Name)

	if !e.opts.AllowDuplicates {
		exists, err := e.meta.ExistsByOriginalName(ctx, sub.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: duplicate check: %v", ErrBackendRead, err)
		}
		if exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFile, sub.Name)
		}
	}

	if err := e.validator.Validate(sub.Name, sub.ContentType, sub.Size); err != nil {
		return nil, err
	}

	res, err := e.blobs.Put(ctx, sub.Name, sub.Content)
	if err != nil {
		if errors.Is(err, storage.ErrPathEscape) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendWrite, err)
	}

	// A cancellation seen after the blob write but before the commit is
	// treated as a failed store: clean up the blob so no orphan remains.
	if err := ctx.Err(); err != nil {
		return nil, e.cleanupBlob(ctx, res.Ref, fmt.Errorf("%w: %v", ErrBackendWrite, err))
	}

	md := &metadata.FileMetadata{
		OriginalName: sub.Name,
		StorageRef:   res.Ref,
		ContentType:  sub.ContentType,
		Size:         res.Size,
		Checksum:     res.Checksum,
		UploadedAt:   time.Now().UTC(),
	}
	if err := e.meta.Save(ctx, md); err != nil {
		return nil, e.cleanupBlob(ctx, res.Ref, fmt.Errorf("%w: %v", ErrMetadataCommit, err))
	}

	slog.Info("file stored", "name", md.OriginalName, "size", md.Size, "checksum", md.Checksum)
	return md, nil
}

// cleanupBlob removes a blob written by a store attempt that cannot be
// committed. The delete runs detached from the caller's context so a
// cancelled store still gets its cleanup. Both failures are reported
// together when the cleanup itself fails.
func (e *Engine) cleanupBlob(ctx context.Context, ref string, cause error) error {
	if err := e.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return errors.Join(cause, fmt.Errorf("orphan blob cleanup failed for %s: %v", ref, err))
	}
	return cause
}

// StoreMultiple stores each submission independently. Zero-byte
// submissions are skipped, individual failures are collected into a
// BatchError, and successful items stay committed regardless of how the
// rest of the batch fares.
func (e *Engine) StoreMultiple(ctx context.Context, subs []*Submission) ([]*metadata.FileMetadata, error) {
	var stored []*metadata.FileMetadata
	var batch BatchError

	for _, sub := range subs {
		if sub == nil || sub.Size == 0 {
			continue
		}
		md, err := e.Store(ctx, sub)
		if err != nil {
			batch.Items = append(batch.Items, BatchItemError{Filename: sub.Name, Err: err})
			continue
		}
		stored = append(stored, md)
	}

	if len(batch.Items) > 0 {
		return stored, &batch
	}
	return stored, nil
}

// Retrieve looks up the metadata for name and opens its blob. A missing
// blob behind existing metadata is surfaced as ErrConsistencyFault, never
// folded into a plain not-found.
func (e *Engine) Retrieve(ctx context.Context, name string) (*metadata.FileMetadata, io.ReadCloser, error) {
	md, err := e.meta.FindByOriginalName(ctx, name)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBackendRead, err)
	}

	rc, err := e.blobs.Get(ctx, md.StorageRef)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: record %s references %s", ErrConsistencyFault, md.ID, md.StorageRef)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBackendRead, err)
	}

	if e.opts.VerifyOnRead {
		rc, err = e.verifyChecksum(md, rc)
		if err != nil {
			return nil, nil, err
		}
	}
	return md, rc, nil
}

func (e *Engine) verifyChecksum(md *metadata.FileMetadata, rc io.ReadCloser) (io.ReadCloser, error) {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendRead, err)
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != md.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch for %q: recorded %s, computed %s",
			ErrConsistencyFault, md.OriginalName, md.Checksum, got)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the blob first and the metadata second. A crash between
// the two leaves a dangling metadata row, which is detectable on the next
// retrieve; the reverse order would leak an unfindable orphan blob.
func (e *Engine) Delete(ctx context.Context, name string) error {
	e.names.acquire(name)
	defer e.names.release(name)

	md, err := e.meta.FindByOriginalName(ctx, name)
	if errors.Is(err, metadata.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendRead, err)
	}

	if err := e.blobs.Delete(ctx, md.StorageRef); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrBackendWrite, err)
	}

	if err := e.meta.Delete(ctx, md); err != nil {
		return fmt.Errorf("%w: %v", ErrMetadataCommit, err)
	}

	slog.Info("file deleted", "name", name)
	return nil
}

// List returns every metadata record. Order follows upload time; callers
// needing another order sort for themselves.
func (e *Engine) List(ctx context.Context) ([]metadata.FileMetadata, error) {
	records, err := e.meta.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendRead, err)
	}
	return records, nil
}
