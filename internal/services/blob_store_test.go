package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3BlobStoreUpload(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3BlobStore(fake, "certificates", "2024")

	require.NoError(t, store.Upload(context.Background(), "a.png", "image/png", []byte("data")))
	assert.Equal(t, "certificates", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "2024/a.png", aws.ToString(fake.input.Key))
	assert.Equal(t, "image/png", aws.ToString(fake.input.ContentType))
	assert.Equal(t, []byte("data"), fake.body)
}

func TestS3BlobStoreUploadError(t *testing.T) {
	store := NewS3BlobStore(&fakeS3{err: errors.New("access denied")}, "certificates", "")

	err := store.Upload(context.Background(), "a.png", "image/png", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestDirBlobStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	store, err := NewDirBlobStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Upload(context.Background(), "a.png", "image/png", []byte("data")))
	raw, err := os.ReadFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), raw)

	require.Error(t, store.Upload(context.Background(), "../escape.png", "image/png", nil))
}
