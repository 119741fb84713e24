package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/metrics"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// AuthService checks credentials and mints access tokens.
type AuthService struct {
	Store  store.Store
	Tokens *TokenService
}

// Authenticate returns the active account matching email and password.
// Unknown email, wrong password and inactive account all yield
// ErrBadCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		cryptox.DummyVerify(password)
		metrics.ObserveLogin("bad_credentials")
		return domain.User{}, ErrBadCredentials
	}
	if err != nil {
		metrics.ObserveLogin("error")
		return domain.User{}, storeErr(err)
	}

	if err := cryptox.VerifyPassword(password, u.HashedPassword); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Error("stored password hash unusable", "user_id", u.ID, slog.Any("error", err))
		}
		metrics.ObserveLogin("bad_credentials")
		return domain.User{}, ErrBadCredentials
	}
	if !u.IsActive {
		metrics.ObserveLogin("inactive")
		return domain.User{}, ErrBadCredentials
	}

	metrics.ObserveLogin("ok")
	return u, nil
}

// Login authenticates and issues an access token for the account.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", domain.User{}, err
	}
	token, err := s.Tokens.Issue(u.ID)
	if err != nil {
		return "", domain.User{}, err
	}
	slogx.FromContext(ctx).Info("user logged in", "user_id", u.ID)
	return token, u, nil
}

// CurrentUser resolves a verified token subject to its active account.
func (s *AuthService) CurrentUser(ctx context.Context, subject string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidToken
	}
	if err != nil {
		return domain.User{}, storeErr(err)
	}
	if !u.IsActive {
		return domain.User{}, ErrInvalidToken
	}
	return u, nil
}
