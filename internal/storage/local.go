package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore is a BlobStore backed by a single directory on the local
// filesystem. Writes go through a temp file in the root and are renamed
// into place, so a successful Put is atomic on the same filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed and resolves it to an
// absolute, symlink-free path. Every later path check compares against this
// resolved root.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &LocalStore{root: resolved}, nil
}

// destPath resolves a stored name to an absolute destination and fails
// closed when the result would land outside the root. The parent of the
// resolved destination must be the root itself.
func (s *LocalStore) destPath(ref string) (string, error) {
	dest, err := filepath.Abs(filepath.Join(s.root, ref))
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	if filepath.Dir(dest) != s.root {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, ref)
	}
	return dest, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) (*PutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref := storedName(name)
	// Escape check runs before any byte is written.
	dest, err := s.destPath(ref)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("move blob into place: %w", err)
	}

	return &PutResult{
		Ref:      ref,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (s *LocalStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.destPath(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.destPath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}
