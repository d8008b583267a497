package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchblog/internal/config"
)

type fakeS3 struct {
	put    *s3.PutObjectInput
	putErr error
	del    *s3.DeleteObjectInput
	delErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.del = in
	return &s3.DeleteObjectOutput{}, f.delErr
}

func TestS3_Upload(t *testing.T) {
	api := &fakeS3{}
	s := NewS3WithAPI(api, testStorageConfig())

	att, err := s.Upload(context.Background(), File{
		Filename:    "paper.pdf",
		ContentType: "application/pdf",
		Size:        3,
		Body:        strings.NewReader("pdf"),
	}, FolderPDFs)
	require.NoError(t, err)

	require.NotNil(t, api.put)
	assert.Equal(t, "blog", aws.ToString(api.put.Bucket))
	assert.Equal(t, att.ExternalID, aws.ToString(api.put.Key))
	assert.Equal(t, "application/pdf", aws.ToString(api.put.ContentType))
	assert.Equal(t, int64(3), aws.ToInt64(api.put.ContentLength))
	assert.True(t, strings.HasPrefix(att.ExternalID, "posts/pdfs/"))
	assert.Equal(t, "http://cdn.local/blog/"+att.ExternalID, att.URL)
}

func TestS3_Errors(t *testing.T) {
	s := NewS3WithAPI(&fakeS3{putErr: errors.New("denied"), delErr: errors.New("nope")}, testStorageConfig())

	_, err := s.Upload(context.Background(), File{Filename: "a.png", Body: strings.NewReader("x")}, FolderImages)
	assert.ErrorContains(t, err, "denied")

	assert.ErrorContains(t, s.Delete(context.Background(), "k"), "nope")
}

func TestS3_Delete(t *testing.T) {
	api := &fakeS3{}
	s := NewS3WithAPI(api, testStorageConfig())

	require.NoError(t, s.Delete(context.Background(), "posts/images/a.png"))
	assert.Equal(t, "posts/images/a.png", aws.ToString(api.del.Key))
	assert.Equal(t, "blog", aws.ToString(api.del.Bucket))
}

func TestS3Endpoint(t *testing.T) {
	assert.Equal(t, "", s3Endpoint(config.Storage{}))
	assert.Equal(t, "http://localhost:9000", s3Endpoint(config.Storage{Endpoint: "localhost:9000"}))
	assert.Equal(t, "https://s3.local", s3Endpoint(config.Storage{Endpoint: "s3.local", UseSSL: true}))
	assert.Equal(t, "https://x.example", s3Endpoint(config.Storage{Endpoint: "https://x.example"}))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.Storage{Provider: "ftp"})
	assert.ErrorContains(t, err, "unknown storage provider")
}

func TestMemory_UploadDelete(t *testing.T) {
	m := NewMemory("http://local/files")
	att, err := m.Upload(context.Background(), File{Filename: "a.png", ContentType: "image/png", Body: strings.NewReader("abc")}, FolderImages)
	require.NoError(t, err)
	assert.Equal(t, int64(3), att.SizeBytes)
	assert.True(t, m.Has(att.ExternalID))

	require.NoError(t, m.Delete(context.Background(), att.ExternalID))
	assert.Equal(t, 0, m.Len())
}
