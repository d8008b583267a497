// Package storage keeps post attachments in an object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"researchblog/internal/config"
	"researchblog/internal/models"
)

const (
	FolderImages = "posts/images"
	FolderPDFs   = "posts/pdfs"
)

// File is an upload in flight.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Storage uploads and removes attachment objects. The externalID of an
// attachment is its object key.
type Storage interface {
	Upload(ctx context.Context, file File, folder string) (models.Attachment, error)
	Delete(ctx context.Context, externalID string) error
}

// New builds the driver named by cfg.Provider.
func New(ctx context.Context, cfg config.Storage) (Storage, error) {
	switch cfg.Provider {
	case "minio":
		return NewMinio(ctx, cfg)
	case "s3":
		return NewS3(ctx, cfg)
	case "memory":
		return NewMemory(cfg.PublicURL), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func objectKey(folder string, file File) string {
	return fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), extension(file))
}

func extension(file File) string {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != "" {
		return ext
	}
	switch file.ContentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	}
	if exts, _ := mime.ExtensionsByType(file.ContentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func attachment(publicURL, key string, file File, size int64) models.Attachment {
	return models.Attachment{
		URL:        strings.TrimSuffix(publicURL, "/") + "/" + key,
		ExternalID: key,
		Filename:   file.Filename,
		MIMEType:   file.ContentType,
		SizeBytes:  size,
	}
}
