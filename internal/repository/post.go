package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"researchblog/internal/models"
)

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.Images == nil {
		post.Images = []models.Attachment{}
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *postRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, wrapFind(err, "failed to find post by id %s", id)
	}
	return &post, nil
}

func (r *postRepository) FindAllPublic(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list posts of owner %s: %w", ownerID, err)
	}
	return posts, nil
}

// Update writes only the columns present in patch and returns the fresh row.
func (r *postRepository) Update(ctx context.Context, id uuid.UUID, patch models.PostPatch) (*models.Post, error) {
	var updated *models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return err
		}
		cols := patch.Apply(&post)
		if len(cols) > 0 {
			if err := tx.Model(&post).Select(cols).Updates(&post).Error; err != nil {
				return err
			}
		}
		updated = &post
		return nil
	})
	if err != nil {
		return nil, wrapFind(err, "failed to update post id %s", id)
	}
	return updated, nil
}

func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete post id %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
