package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"researchblog/internal/config"
	"researchblog/internal/models"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ Storage = (*S3)(nil)

type S3 struct {
	api       s3API
	bucket    string
	publicURL string
}

// NewS3 talks to AWS S3, or to any S3 compatible endpoint when cfg.Endpoint is set.
func NewS3(ctx context.Context, cfg config.Storage) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := s3Endpoint(cfg); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3WithAPI(client, cfg), nil
}

func NewS3WithAPI(api s3API, cfg config.Storage) *S3 {
	return &S3{api: api, bucket: cfg.Bucket, publicURL: cfg.PublicURL}
}

func s3Endpoint(cfg config.Storage) string {
	if cfg.Endpoint == "" || strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

func (s *S3) Upload(ctx context.Context, file File, folder string) (models.Attachment, error) {
	key := objectKey(folder, file)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file.Body,
		ContentType: aws.String(file.ContentType),
	}
	if file.Size > 0 {
		in.ContentLength = aws.Int64(file.Size)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return attachment(s.publicURL, key, file, file.Size), nil
}

func (s *S3) Delete(ctx context.Context, externalID string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(externalID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", externalID, err)
	}
	return nil
}
