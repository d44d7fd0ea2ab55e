package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Options configures a connection to an S3-compatible object store.
// Endpoint and credentials may be left empty to use the SDK's defaults,
// which is what a real AWS deployment wants; MinIO-style deployments set
// all of them explicitly.
type S3Options struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3Store is a BlobStore backed by an S3-compatible object service. Storage
// references are the service object keys; the service itself rules out any
// path-escape concern.
type S3Store struct {
	api    s3iface.S3API
	bucket string
}

func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket must not be empty")
	}
	cfg := &aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(opts.ForcePathStyle),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	return &S3Store{api: s3.New(sess), bucket: opts.Bucket}, nil
}

// newS3StoreWithAPI wires an existing client, used by tests.
func newS3StoreWithAPI(api s3iface.S3API, bucket string) *S3Store {
	return &S3Store{api: api, bucket: bucket}
}

func (s *S3Store) Put(ctx context.Context, name string, r io.Reader) (*PutResult, error) {
	ref := storedName(name)

	// Buffer the upload once so the same bytes feed both the digest and
	// the object write.
	var buf bytes.Buffer
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(&buf, hasher), r)
	if err != nil {
		return nil, fmt.Errorf("buffer upload: %w", err)
	}

	_, err = s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(ref),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", ref, err)
	}

	return &PutResult{
		Ref:      ref,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("get object %s: %w", ref, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, ref string) error {
	// DeleteObject succeeds on unknown keys, so probe first to keep the
	// not-found contract shared with the local backend.
	_, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		if isS3NotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return fmt.Errorf("head object %s: %w", ref, err)
	}

	_, err = s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", ref, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
