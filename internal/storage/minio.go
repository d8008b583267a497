package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"researchblog/internal/config"
	"researchblog/internal/models"
)

// minioAPI is the subset of *minio.Client the driver needs.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var _ Storage = (*Minio)(nil)

type Minio struct {
	api       minioAPI
	bucket    string
	region    string
	publicURL string
}

func NewMinio(ctx context.Context, cfg config.Storage) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewMinioWithAPI(ctx, client, cfg)
}

// NewMinioWithAPI allows injecting a fake client.
func NewMinioWithAPI(ctx context.Context, api minioAPI, cfg config.Storage) (*Minio, error) {
	m := &Minio{api: api, bucket: cfg.Bucket, region: cfg.Region, publicURL: cfg.PublicURL}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}
	return m, nil
}

func (m *Minio) ensureBucket(ctx context.Context) error {
	exists, err := m.api.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.api.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (m *Minio) Upload(ctx context.Context, file File, folder string) (models.Attachment, error) {
	key := objectKey(folder, file)
	size := file.Size
	if size <= 0 {
		size = -1
	}
	info, err := m.api.PutObject(ctx, m.bucket, key, file.Body, size, minio.PutObjectOptions{
		ContentType: file.ContentType,
	})
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	if info.Size == 0 {
		info.Size = file.Size
	}
	return attachment(m.publicURL, key, file, info.Size), nil
}

func (m *Minio) Delete(ctx context.Context, externalID string) error {
	if err := m.api.RemoveObject(ctx, m.bucket, externalID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", externalID, err)
	}
	return nil
}
