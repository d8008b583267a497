package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"researchblog/internal/models"
	"researchblog/internal/repository"
)

const (
	resetTokenBytes = 32
	resetTokenTTL   = 10 * time.Minute
)

const (
	MsgRegistered        = "Registration successful, check email to verify"
	MsgRegisteredNoEmail = "Registration successful, but email verification failed. Please contact support."
	MsgEmailVerified     = "Email verified successfully"
	MsgResetEmailSent    = "Password reset email sent"
	MsgPasswordResetDone = "Password reset successful"
)

// Principal is the caller identified by a session token.
type Principal struct {
	ID   uuid.UUID
	Role models.Role
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

type RegisterResult struct {
	Message string
	// VerificationURL is set only when the email could not be delivered.
	VerificationURL string
}

type AuthOptions struct {
	ServerURL  string
	ClientURL  string
	BcryptCost int
	Now        func() time.Time
}

type AuthService struct {
	accounts repository.AccountRepository
	tokens   *TokenService
	notifier Notifier
	log      logrus.FieldLogger

	serverURL  string
	clientURL  string
	bcryptCost int
	now        func() time.Time
}

func NewAuthService(accounts repository.AccountRepository, tokens *TokenService, notifier Notifier, log logrus.FieldLogger, opts AuthOptions) *AuthService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.ClientURL == "" {
		opts.ClientURL = opts.ServerURL
	}
	return &AuthService{
		accounts:   accounts,
		tokens:     tokens,
		notifier:   notifier,
		log:        log,
		serverURL:  strings.TrimSuffix(opts.ServerURL, "/"),
		clientURL:  strings.TrimSuffix(opts.ClientURL, "/"),
		bcryptCost: opts.BcryptCost,
		now:        opts.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, ErrMissingFields
	}
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if !s.tokens.Ready() || s.serverURL == "" {
		s.log.Error("register: JWT_SECRET or SERVER_URL is not set")
		return nil, ErrServerMisconfigured
	}

	if _, err := s.accounts.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// email was free a moment ago, so this is the username
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	token, err := s.tokens.Issue(PurposeVerifyEmail, account.ID, "")
	if err != nil {
		return nil, err
	}
	verifyURL := fmt.Sprintf("%s/api/auth/verify/%s", s.serverURL, token)

	if err := s.notifier.SendVerification(ctx, account.Email, verifyURL); err != nil {
		s.log.WithError(err).WithField("account_id", account.ID).Warn("verification email not delivered")
		return &RegisterResult{Message: MsgRegisteredNoEmail, VerificationURL: verifyURL}, nil
	}
	return &RegisterResult{Message: MsgRegistered}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(PurposeVerifyEmail, token)
	if err != nil {
		return err
	}
	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if account.IsVerified {
		return nil
	}
	account.IsVerified = true
	return s.accounts.Save(ctx, account)
}

// Login returns a session token for a verified account.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	if !account.IsVerified {
		return "", ErrNotVerified
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(PurposeSession, account.ID, account.Role)
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	account.SetResetToken(token, s.now().Add(resetTokenTTL))
	if err := s.accounts.Save(ctx, account); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.clientURL, token)
	return s.notifier.SendPasswordReset(ctx, account.Email, resetURL)
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if password == "" {
		return ErrMissingFields
	}
	account, err := s.accounts.FindByActiveResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	account.ClearResetToken()
	return s.accounts.Save(ctx, account)
}

// Authenticate resolves a bearer session token to its caller.
func (s *AuthService) Authenticate(_ context.Context, token string) (*Principal, error) {
	claims, err := s.tokens.Verify(PurposeSession, token)
	if err != nil {
		return nil, err
	}
	return &Principal{ID: claims.AccountID, Role: claims.Role}, nil
}

func newResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
