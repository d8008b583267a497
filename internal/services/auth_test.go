package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"researchblog/internal/logger"
	"researchblog/internal/repository"
)

type fakeNotifier struct {
	verifyURLs []string
	resetURLs  []string
	err        error
}

func (f *fakeNotifier) SendVerification(_ context.Context, _, url string) error {
	if f.err != nil {
		return f.err
	}
	f.verifyURLs = append(f.verifyURLs, url)
	return nil
}

func (f *fakeNotifier) SendPasswordReset(_ context.Context, _, url string) error {
	if f.err != nil {
		return f.err
	}
	f.resetURLs = append(f.resetURLs, url)
	return nil
}

type authFixture struct {
	svc      *AuthService
	accounts repository.AccountRepository
	notifier *fakeNotifier
	clock    *fakeClock
}

func newAuthFixture(t *testing.T, secret, serverURL string) *authFixture {
	t.Helper()
	clock := newClock()
	accounts := repository.NewMemory().Accounts()
	notifier := &fakeNotifier{}
	svc := NewAuthService(accounts, NewTokenService(secret, clock.Now), notifier, logger.Discard(), AuthOptions{
		ServerURL:  serverURL,
		ClientURL:  "http://app.local",
		BcryptCost: bcrypt.MinCost,
		Now:        clock.Now,
	})
	return &authFixture{svc: svc, accounts: accounts, notifier: notifier, clock: clock}
}

func validRegistration() RegisterInput {
	return RegisterInput{Username: "ana", Email: "ana@x.com", Password: "Secret123!", ConfirmPassword: "Secret123!"}
}

func lastSegment(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

// registerVerified walks an account through register and verify.
func (f *authFixture) registerVerified(t *testing.T) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyEmail(context.Background(), lastSegment(f.notifier.verifyURLs[0])))
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")

	missing := validRegistration()
	missing.Username = ""
	_, err := f.svc.Register(context.Background(), missing)
	assert.ErrorIs(t, err, ErrMissingFields)
	assert.ErrorIs(t, err, ErrValidation)

	mismatch := validRegistration()
	mismatch.ConfirmPassword = "other"
	_, err = f.svc.Register(context.Background(), mismatch)
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegister_Misconfigured(t *testing.T) {
	for name, f := range map[string]*authFixture{
		"no secret":     newAuthFixture(t, "", "http://api.local"),
		"no server url": newAuthFixture(t, "secret", ""),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), validRegistration())
			assert.ErrorIs(t, err, ErrServerMisconfigured)
		})
	}
}

func TestRegister_SendsVerificationLink(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local/")

	res, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Equal(t, MsgRegistered, res.Message)
	assert.Empty(t, res.VerificationURL)

	require.Len(t, f.notifier.verifyURLs, 1)
	assert.True(t, strings.HasPrefix(f.notifier.verifyURLs[0], "http://api.local/api/auth/verify/"))

	account, err := f.accounts.FindByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)
	assert.False(t, account.IsVerified)
	assert.NotEqual(t, "Secret123!", account.PasswordHash)
	cost, err := bcrypt.Cost([]byte(account.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestRegister_Duplicates(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")
	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, "Email already registered", ErrorMessage(err))

	sameName := validRegistration()
	sameName.Email = "other@x.com"
	_, err = f.svc.Register(context.Background(), sameName)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestRegister_MailFailureStillSucceeds(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")
	f.notifier.err = errors.New("smtp down")

	res, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Equal(t, MsgRegisteredNoEmail, res.Message)
	assert.True(t, strings.HasPrefix(res.VerificationURL, "http://api.local/api/auth/verify/"))

	require.NoError(t, f.svc.VerifyEmail(context.Background(), lastSegment(res.VerificationURL)))
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")
	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	token := lastSegment(f.notifier.verifyURLs[0])

	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), "garbage"), ErrInvalidToken)

	require.NoError(t, f.svc.VerifyEmail(context.Background(), token))
	account, err := f.accounts.FindByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)
	assert.True(t, account.IsVerified)

	// idempotent within the token lifetime
	require.NoError(t, f.svc.VerifyEmail(context.Background(), token))

	f.clock.Advance(25 * time.Hour)
	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), token), ErrInvalidToken)
}

func TestVerifyEmail_RejectsSessionToken(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")
	f.registerVerified(t)

	session, err := f.svc.Login(context.Background(), "ana@x.com", "Secret123!")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), session), ErrInvalidToken)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")

	_, err := f.svc.Login(context.Background(), "ana@x.com", "Secret123!")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "ana@x.com", "Secret123!")
	assert.ErrorIs(t, err, ErrNotVerified)

	require.NoError(t, f.svc.VerifyEmail(context.Background(), lastSegment(f.notifier.verifyURLs[0])))

	_, err = f.svc.Login(context.Background(), "ana@x.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := f.svc.Login(context.Background(), "ana@x.com", "Secret123!")
	require.NoError(t, err)

	principal, err := f.svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	account, err := f.accounts.FindByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, principal.ID)
	assert.Equal(t, account.Role, principal.Role)

	f.clock.Advance(24*time.Hour + time.Second)
	_, err = f.svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")
	f.registerVerified(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.ForgotPassword(ctx, "nobody@x.com"), ErrAccountNotFound)

	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@x.com"))
	require.Len(t, f.notifier.resetURLs, 1)
	assert.True(t, strings.HasPrefix(f.notifier.resetURLs[0], "http://app.local/reset-password/"))
	token := lastSegment(f.notifier.resetURLs[0])
	assert.Len(t, token, 64)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "New1", "New2"), ErrPasswordMismatch)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "wrong", "New1", "New1"), ErrInvalidToken)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "NewSecret!", "NewSecret!"))

	account, err := f.accounts.FindByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Nil(t, account.ResetPasswordToken)
	assert.Nil(t, account.ResetPasswordExpire)

	// single use
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "Again!", "Again!"), ErrInvalidToken)

	_, err = f.svc.Login(ctx, "ana@x.com", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "ana@x.com", "NewSecret!")
	assert.NoError(t, err)
}

func TestResetPassword_Expired(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")
	f.registerVerified(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@x.com"))
	token := lastSegment(f.notifier.resetURLs[0])

	f.clock.Advance(10 * time.Minute)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "NewSecret!", "NewSecret!"), ErrInvalidToken)
}

func TestForgotPassword_SecondRequestReplacesToken(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")
	f.registerVerified(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@x.com"))
	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@x.com"))
	first, second := lastSegment(f.notifier.resetURLs[0]), lastSegment(f.notifier.resetURLs[1])
	require.NotEqual(t, first, second)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, first, "NewSecret!", "NewSecret!"), ErrInvalidToken)
	assert.NoError(t, f.svc.ResetPassword(ctx, second, "NewSecret!", "NewSecret!"))
}

func TestForgotPassword_MailFailurePropagates(t *testing.T) {
	f := newAuthFixture(t, "secret", "http://api.local")
	f.registerVerified(t)
	f.notifier.err = errors.New("smtp down")

	err := f.svc.ForgotPassword(context.Background(), "ana@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}
