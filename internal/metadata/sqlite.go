package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent stores.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS file_metadata (
		id TEXT PRIMARY KEY,
		original_name TEXT NOT NULL,
		storage_ref TEXT NOT NULL UNIQUE,
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		size INTEGER NOT NULL DEFAULT 0,
		checksum TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_file_metadata_original_name ON file_metadata(original_name);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init metadata schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, md *FileMetadata) error {
	if md.ID == "" {
		md.ID = uuid.New().String()
	}
	if md.UploadedAt.IsZero() {
		md.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_metadata (id, original_name, storage_ref, content_type, size, checksum, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		md.ID, md.OriginalName, md.StorageRef, md.ContentType, md.Size, md.Checksum,
		md.UploadedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save metadata for %q: %w", md.OriginalName, err)
	}
	return nil
}

const selectColumns = `SELECT id, original_name, storage_ref, content_type, size, checksum, uploaded_at FROM file_metadata`

func (s *SQLiteStore) FindByOriginalName(ctx context.Context, name string) (*FileMetadata, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE original_name = ? LIMIT 1`, name)
	return scanRecord(row)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*FileMetadata, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanRecord(row)
}

func (s *SQLiteStore) ExistsByOriginalName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM file_metadata WHERE original_name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check metadata existence for %q: %w", name, err)
	}
	return exists, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]FileMetadata, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY uploaded_at`)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var records []FileMetadata
	for rows.Next() {
		md, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *md)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, md *FileMetadata) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM file_metadata WHERE id = ?`, md.ID)
	if err != nil {
		return fmt.Errorf("delete metadata %s: %w", md.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %s", ErrNotFound, md.ID)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*FileMetadata, error) {
	var md FileMetadata
	var uploadedAt string
	err := row.Scan(&md.ID, &md.OriginalName, &md.StorageRef, &md.ContentType, &md.Size, &md.Checksum, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan metadata: %w", err)
	}
	md.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse uploaded_at: %w", err)
	}
	return &md, nil
}
