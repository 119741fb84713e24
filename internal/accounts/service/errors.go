package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/accounts/internal/accounts/store"
)

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrStoreUnavailable  = errors.New("user store unavailable")

	ErrBadCredentials    = errors.New("bad credentials")
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token expired")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	ErrInvalidOTPToken   = errors.New("invalid OTP token")
	ErrOTPNotGenerated   = errors.New("OTP secret not generated")
	ErrOTPNotEnabled     = errors.New("OTP not enabled")
	ErrOTPAlreadyEnabled = errors.New("OTP already enabled")
	ErrNoProfilePicture  = errors.New("no profile picture")
)

// storeErr maps store sentinels onto service ones and marks anything else
// as an infrastructure failure.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrUserAlreadyExists
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
