package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore("file::memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newUser(email string) domain.User {
	return domain.User{
		ID:             idx.New().String(),
		Email:          email,
		HashedPassword: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		FirstName:      "Jane",
		LastName:       "Doe",
		IsActive:       true,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
}

func TestCreateAndGetUser(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("jane@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	byID, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
	require.Equal(t, u.HashedPassword, byID.HashedPassword)
	require.True(t, byID.IsActive)
	require.False(t, byID.IsSuperuser)
	require.False(t, byID.OTPEnabled)
	require.Nil(t, byID.OTPEnabledAt)
	require.Empty(t, byID.ProfilePicturePath)
	require.False(t, byID.CreatedAt.IsZero())

	byEmail, err := s.Users().GetUserByEmail(ctx, "JANE@Example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	n, err := s.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestGetUserNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Users().CreateUser(ctx, newUser("jane@example.com")))

	err := s.Users().CreateUser(ctx, newUser("Jane@Example.COM"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestCreateUserConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	const writers = 8
	var (
		wg   sync.WaitGroup
		errs = make(chan error, writers)
	)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Users().CreateUser(ctx, newUser("race@example.com"))
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrAlreadyExists):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, writers-1, dup)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("jane@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	enabledAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := s.Users().UpdateUser(ctx, u.ID, domain.UserPatch{
		ProfilePicturePath: domain.Ptr("2026-01-02_03-04-05.png"),
		IsSuperuser:        domain.Ptr(true),
		IsVerified:         domain.Ptr(true),
		OTPEnabled:         domain.Ptr(true),
		OTPBase32:          domain.Ptr("sealed"),
		OTPEnabledAt:       &enabledAt,
	})
	require.NoError(t, err)
	require.Equal(t, "2026-01-02_03-04-05.png", got.ProfilePicturePath)
	require.True(t, got.IsSuperuser)
	require.True(t, got.IsVerified)
	require.True(t, got.OTPEnabled)
	require.Equal(t, "sealed", got.OTPBase32)
	require.NotNil(t, got.OTPEnabledAt)
	require.True(t, enabledAt.Equal(*got.OTPEnabledAt))
	require.Equal(t, u.HashedPassword, got.HashedPassword, "unset fields are untouched")
	require.False(t, got.UpdatedAt.Before(got.CreatedAt))

	got, err = s.Users().UpdateUser(ctx, u.ID, domain.UserPatch{
		OTPEnabled:        domain.Ptr(false),
		OTPBase32:         domain.Ptr(""),
		ClearOTPEnabledAt: true,
	})
	require.NoError(t, err)
	require.False(t, got.OTPEnabled)
	require.Empty(t, got.OTPBase32)
	require.Nil(t, got.OTPEnabledAt)

	reread, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, got.ProfilePicturePath, reread.ProfilePicturePath)
	require.Nil(t, reread.OTPEnabledAt)
}

func TestUpdateUserEmptyPatchReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("jane@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().UpdateUser(ctx, u.ID, domain.UserPatch{})
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestUpdateUserNotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.Users().UpdateUser(context.Background(), "missing", domain.UserPatch{IsActive: domain.Ptr(false)})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := newUser("jane@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))
	require.ErrorIs(t, s.Users().DeleteUser(ctx, u.ID), store.ErrNotFound)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Users().CreateUser(ctx, newUser("rolled@example.com")))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.Users().GetUserByEmail(ctx, "rolled@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, newUser("kept@example.com"))
	}))
	_, err = s.Users().GetUserByEmail(ctx, "kept@example.com")
	require.NoError(t, err)
}

func TestPing(t *testing.T) {
	require.NoError(t, newStore(t).Ping(context.Background()))
}
