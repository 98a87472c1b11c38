package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	objects map[string]string
	err     error
}

func (m *memStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = string(b)
	return nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.objects, key)
	return nil
}

func TestInstrument_PassesThrough(t *testing.T) {
	mem := &memStorage{objects: map[string]string{}}
	s := Instrument(mem, "mem")

	require.NoError(t, s.Upload(context.Background(), "a.png", strings.NewReader("png"), 3, "image/png"))
	assert.Equal(t, "png", mem.objects["a.png"])

	require.NoError(t, s.Delete(context.Background(), "a.png"))
	assert.Empty(t, mem.objects)
}

func TestInstrument_ReturnsBackendError(t *testing.T) {
	boom := errors.New("bucket gone")
	s := Instrument(&memStorage{objects: map[string]string{}, err: boom}, "mem")

	assert.ErrorIs(t, s.Upload(context.Background(), "a.png", strings.NewReader("x"), 1, "image/png"), boom)
	assert.ErrorIs(t, s.Delete(context.Background(), "a.png"), boom)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "ftp"})
	assert.EqualError(t, err, "unknown storage driver: ftp")
}

type fakeS3 struct {
	put    *s3.PutObjectInput
	body   string
	del    *s3.DeleteObjectInput
	putErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.put = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.del = in
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage_Upload(t *testing.T) {
	api := &fakeS3{}
	s := &S3Storage{client: api, bucket: "media"}

	err := s.Upload(context.Background(), "u1_ab12cd34.png", strings.NewReader("data"), 4, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "media", aws.ToString(api.put.Bucket))
	assert.Equal(t, "u1_ab12cd34.png", aws.ToString(api.put.Key))
	assert.Equal(t, "image/png", aws.ToString(api.put.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(api.put.ContentLength))
	assert.Equal(t, "data", api.body)
}

func TestS3Storage_UploadUnknownSize(t *testing.T) {
	api := &fakeS3{}
	s := &S3Storage{client: api, bucket: "media"}

	require.NoError(t, s.Upload(context.Background(), "k", strings.NewReader("x"), -1, "image/png"))
	assert.Nil(t, api.put.ContentLength)
}

func TestS3Storage_UploadError(t *testing.T) {
	s := &S3Storage{client: &fakeS3{putErr: errors.New("access denied")}, bucket: "media"}

	err := s.Upload(context.Background(), "k", strings.NewReader("x"), 1, "image/png")
	assert.EqualError(t, err, `put object "k": access denied`)
}

func TestS3Storage_Delete(t *testing.T) {
	api := &fakeS3{}
	s := &S3Storage{client: api, bucket: "media"}

	require.NoError(t, s.Delete(context.Background(), "k"))
	assert.Equal(t, "media", aws.ToString(api.del.Bucket))
	assert.Equal(t, "k", aws.ToString(api.del.Key))
}

func TestPublicReadPolicy(t *testing.T) {
	p := publicReadPolicy("media")
	assert.Contains(t, p, `"Resource":"arn:aws:s3:::media/*"`)
	assert.Contains(t, p, `"Action":"s3:GetObject"`)
}
