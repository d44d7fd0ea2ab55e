package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory stand-in for the object service.
type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.StringValue(in.Key)]; !ok {
		return nil, awserr.New("NotFound", "not found", nil)
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	store := newS3StoreWithAPI(newFakeS3(), "files")

	content := "object payload"
	res, err := store.Put(context.Background(), "doc.pdf", strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), res.Size)
	assert.Len(t, res.Checksum, 64)

	rc, err := store.Get(context.Background(), res.Ref)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestS3StoreGetUnknownKey(t *testing.T) {
	store := newS3StoreWithAPI(newFakeS3(), "files")

	_, err := store.Get(context.Background(), "missing-key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StoreDeleteIdempotence(t *testing.T) {
	store := newS3StoreWithAPI(newFakeS3(), "files")

	res, err := store.Put(context.Background(), "doc.pdf", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), res.Ref))
	assert.ErrorIs(t, store.Delete(context.Background(), res.Ref), ErrNotFound)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Options{})
	assert.Error(t, err)
}
