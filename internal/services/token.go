package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"researchblog/internal/models"
)

type Purpose string

const (
	PurposeVerifyEmail Purpose = "verify-email"
	PurposeSession     Purpose = "session"
)

const tokenTTL = 24 * time.Hour

// Claims carried by verification and session tokens.
type Claims struct {
	jwt.RegisteredClaims
	AccountID uuid.UUID   `json:"id"`
	Role      models.Role `json:"role,omitempty"`
	Purpose   Purpose     `json:"purpose"`
}

// TokenService signs and checks HS256 tokens with a shared secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string, now func() time.Time) *TokenService {
	if now == nil {
		now = time.Now
	}
	return &TokenService{secret: []byte(secret), now: now}
}

// Ready reports whether a signing secret is configured.
func (s *TokenService) Ready() bool {
	return len(s.secret) > 0
}

func (s *TokenService) Issue(purpose Purpose, accountID uuid.UUID, role models.Role) (string, error) {
	if !s.Ready() {
		return "", ErrServerMisconfigured
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		AccountID: accountID,
		Purpose:   purpose,
	}
	if purpose == PurposeSession {
		claims.Role = role
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose. Every failure is ErrInvalidToken.
func (s *TokenService) Verify(purpose Purpose, tokenString string) (*Claims, error) {
	if !s.Ready() {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch %q", ErrInvalidToken, claims.Purpose)
	}
	if claims.AccountID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing account id", ErrInvalidToken)
	}
	return claims, nil
}
