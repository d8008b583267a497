// Package repository provides the account and post stores.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"researchblog/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// AccountRepository persists accounts. Accounts are never deleted.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Account, error)
	// FindByActiveResetToken matches only while the reset window is open at now.
	FindByActiveResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
}

// PostRepository persists posts. Listings are ordered newest first.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	FindAllPublic(ctx context.Context) ([]models.Post, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Post, error)
	Update(ctx context.Context, id uuid.UUID, patch models.PostPatch) (*models.Post, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
