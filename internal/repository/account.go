package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"researchblog/internal/models"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns a gorm backed AccountRepository.
// The gorm.DB must be opened with TranslateError so unique violations surface as ErrDuplicate.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to create account: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		return nil, wrapFind(err, "failed to find account by email %s", email)
	}
	return &account, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, wrapFind(err, "failed to find account by id %s", id)
	}
	return &account, nil
}

func (r *accountRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Account, error) {
	var accounts []models.Account
	if len(ids) == 0 {
		return accounts, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to find accounts: %w", err)
	}
	return accounts, nil
}

func (r *accountRepository) FindByActiveResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("reset_password_token = ? AND reset_password_expire > ?", token, now).
		First(&account).Error
	if err != nil {
		return nil, wrapFind(err, "failed to find account by reset token")
	}
	return &account, nil
}

func (r *accountRepository) Save(ctx context.Context, account *models.Account) error {
	if err := r.db.WithContext(ctx).Save(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to update account id %s: %w", account.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to update account id %s: %w", account.ID, err)
	}
	return nil
}

func wrapFind(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
