package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultOTPIssuer   = "accounts"
	OTPValidatedWindow = time.Hour
)

// OTPSecret is what an authenticator app needs to enrol.
type OTPSecret struct {
	Base32  string
	AuthURL string
}

// OTPValidation is the outcome of a successful second-factor check.
type OTPValidation struct {
	Valid          bool
	ValidatedUntil time.Time
}

// MFAService manages TOTP enrolment. Secrets are sealed before they reach
// the store.
type MFAService struct {
	Store  store.Store
	Sealer *cryptox.Sealer
	Issuer string
	Now    func() time.Time
}

func (s *MFAService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Generate creates a fresh secret for u. It replaces any secret that was
// never enabled.
func (s *MFAService) Generate(ctx context.Context, u domain.User) (OTPSecret, error) {
	issuer := s.Issuer
	if issuer == "" {
		issuer = DefaultOTPIssuer
	}

	var out OTPSecret
	_, err := patchCurrent(ctx, s.Store, u, func(current domain.User) (domain.UserPatch, error) {
		if current.OTPEnabled {
			return domain.UserPatch{}, ErrOTPAlreadyEnabled
		}

		key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: current.Email})
		if err != nil {
			return domain.UserPatch{}, fmt.Errorf("generate otp key: %w", err)
		}
		secret, err := s.Sealer.Seal(key.Secret())
		if err != nil {
			return domain.UserPatch{}, err
		}
		authURL, err := s.Sealer.Seal(key.URL())
		if err != nil {
			return domain.UserPatch{}, err
		}

		out = OTPSecret{Base32: key.Secret(), AuthURL: key.URL()}
		return domain.UserPatch{OTPBase32: &secret, OTPAuthURL: &authURL}, nil
	})
	if err != nil {
		return OTPSecret{}, err
	}
	return out, nil
}

// Enable turns on the second factor once the user proves their app holds
// the generated secret. Only the current time step is accepted, and
// otp_enabled_at is only written on the transition to enabled.
func (s *MFAService) Enable(ctx context.Context, u domain.User, code string) (domain.User, error) {
	updated, err := patchCurrent(ctx, s.Store, u, func(current domain.User) (domain.UserPatch, error) {
		switch {
		case current.OTPEnabled:
			return domain.UserPatch{}, ErrOTPAlreadyEnabled
		case current.OTPBase32 == "":
			return domain.UserPatch{}, ErrOTPNotGenerated
		}
		if err := s.check(current, code, 0); err != nil {
			return domain.UserPatch{}, err
		}

		now := s.now().UTC()
		return domain.UserPatch{
			OTPEnabled:   domain.Ptr(true),
			OTPVerified:  domain.Ptr(true),
			OTPEnabledAt: &now,
		}, nil
	})
	if err != nil {
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("otp enabled", "user_id", updated.ID)
	return updated, nil
}

// Validate checks a code for a user with the factor enabled, allowing one
// time step of clock drift either way.
func (s *MFAService) Validate(ctx context.Context, u domain.User, code string) (OTPValidation, error) {
	current, err := s.current(ctx, u)
	if err != nil {
		return OTPValidation{}, err
	}
	if !current.OTPEnabled {
		return OTPValidation{}, ErrOTPNotEnabled
	}
	if err := s.check(current, code, 1); err != nil {
		return OTPValidation{}, err
	}
	return OTPValidation{Valid: true, ValidatedUntil: s.now().UTC().Add(OTPValidatedWindow)}, nil
}

// Disable removes the factor and forgets the secret.
func (s *MFAService) Disable(ctx context.Context, u domain.User) (domain.User, error) {
	updated, err := patchCurrent(ctx, s.Store, u, func(domain.User) (domain.UserPatch, error) {
		return domain.UserPatch{
			OTPEnabled:        domain.Ptr(false),
			OTPVerified:       domain.Ptr(false),
			OTPBase32:         domain.Ptr(""),
			OTPAuthURL:        domain.Ptr(""),
			ClearOTPEnabledAt: true,
		}, nil
	})
	if err != nil {
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("otp disabled", "user_id", updated.ID)
	return updated, nil
}

func (s *MFAService) current(ctx context.Context, u domain.User) (domain.User, error) {
	current, err := s.Store.Users().GetUserByEmail(ctx, u.Email)
	if err != nil {
		return domain.User{}, storeErr(err)
	}
	return current, nil
}

func (s *MFAService) check(u domain.User, code string, skew uint) error {
	secret, err := s.Sealer.Open(u.OTPBase32)
	if err != nil {
		return fmt.Errorf("open otp secret: %w", err)
	}
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrInvalidOTPToken
	}
	return nil
}
