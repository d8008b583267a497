package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const RoleAdmin Role = "admin"

type Account struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username            string     `gorm:"uniqueIndex;not null" json:"username"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash        string     `gorm:"not null" json:"-"`
	Role                Role       `gorm:"size:20;default:'admin';not null" json:"role"`
	IsVerified          bool       `gorm:"default:false" json:"isVerified"` // gates login
	ResetPasswordToken  *string    `gorm:"size:64;index" json:"-"`
	ResetPasswordExpire *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// SetResetToken opens a reset window. Token and expiry are always set together.
func (a *Account) SetResetToken(token string, expire time.Time) {
	a.ResetPasswordToken = &token
	a.ResetPasswordExpire = &expire
}

// ClearResetToken closes the reset window.
func (a *Account) ClearResetToken() {
	a.ResetPasswordToken = nil
	a.ResetPasswordExpire = nil
}

// OwnerProfile is the part of an account shown next to public posts.
type OwnerProfile struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func (a *Account) PublicProfile() *OwnerProfile {
	return &OwnerProfile{ID: a.ID, Username: a.Username, Email: a.Email}
}
