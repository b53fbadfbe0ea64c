// Package session implements the one-admin credential and its bearer
// sessions. The service is installed once with a password; logins mint signed
// tokens whose ids are tracked server-side so logout revokes them immediately.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	dErrors "provisio/pkg/domain-errors"
)

const minPasswordLength = 8

// Service manages the admin credential and session tokens.
type Service struct {
	store      Store
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewService(store Store, signingKey string, ttl time.Duration) *Service {
	return &Service{
		store:      store,
		signingKey: []byte(signingKey),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Installed reports whether the admin credential has been set.
func (s *Service) Installed(ctx context.Context) (bool, error) {
	_, err := s.store.GetPasswordHash(ctx)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Setup records the admin password. It succeeds exactly once; later attempts
// conflict so a deployed instance cannot be taken over by re-running setup.
func (s *Service) Setup(ctx context.Context, password string) error {
	if len(password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	return s.store.SetPasswordHash(ctx, string(hash))
}

// Login verifies the password and mints a session token.
func (s *Service) Login(ctx context.Context, password string) (string, error) {
	hash, err := s.store.GetPasswordHash(ctx)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return "", dErrors.New(dErrors.CodeConfig, "setup has not been completed")
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	now := s.now().UTC()
	id := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	if err := s.store.PutSession(ctx, id, s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Validate checks a bearer token's signature, expiry, and server-side
// liveness. A token that was logged out fails even before its expiry.
func (s *Service) Validate(ctx context.Context, token string) error {
	id, err := s.parse(token)
	if err != nil {
		return err
	}
	live, err := s.store.SessionExists(ctx, id)
	if err != nil {
		return err
	}
	if !live {
		return dErrors.New(dErrors.CodeUnauthorized, "session revoked or expired")
	}
	return nil
}

// Logout revokes the session behind a token. Unknown or malformed tokens are
// not an error; the end state is the same.
func (s *Service) Logout(ctx context.Context, token string) error {
	id, err := s.parse(token)
	if err != nil {
		return nil
	}
	return s.store.DeleteSession(ctx, id)
}

func (s *Service) parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid session token")
	}
	if claims.ID == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims.ID, nil
}
