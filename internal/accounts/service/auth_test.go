package service_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active, err := f.lifecycle.Register(ctx, newCandidate("jane@example.com"))
	require.NoError(t, err)

	c := newCandidate("off@example.com")
	c.IsActive = false
	_, err = f.lifecycle.Register(ctx, c)
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "jane@example.com", testPassword, nil},
		{"email is case insensitive", "JANE@example.com", testPassword, nil},
		{"wrong password", "jane@example.com", "Wrong123!", service.ErrBadCredentials},
		{"unknown email", "nobody@example.com", testPassword, service.ErrBadCredentials},
		{"inactive account", "off@example.com", testPassword, service.ErrBadCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := f.auth.Authenticate(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, active.ID, u.ID)
		})
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.lifecycle.Register(ctx, newCandidate("jane@example.com"))
	require.NoError(t, err)

	token, got, err := f.auth.Login(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	subject, err := f.tokens.Verify(token)
	require.NoError(t, err)
	require.Equal(t, u.ID, subject)

	current, err := f.auth.CurrentUser(ctx, subject)
	require.NoError(t, err)
	require.Equal(t, u.Email, current.Email)
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.lifecycle.Register(ctx, newCandidate("jane@example.com"))
	require.NoError(t, err)

	_, err = f.auth.CurrentUser(ctx, "missing")
	require.ErrorIs(t, err, service.ErrInvalidToken)

	_, err = f.lifecycle.UpdateUser(ctx, u.ID, service.UserUpdate{IsActive: domain.Ptr(false)})
	require.NoError(t, err)

	_, err = f.auth.CurrentUser(ctx, u.ID)
	require.ErrorIs(t, err, service.ErrInvalidToken)
}
