package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/events"
	"github.com/aussiebroadwan/accounts/internal/accounts/metrics"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/validate"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const defaultPublishTimeout = 5 * time.Second

// LifecycleService owns how accounts are created and how they change
// afterwards. Notifications are best effort: a failed publish is logged and
// counted but never fails the operation that triggered it.
type LifecycleService struct {
	Store     store.Store
	Publisher events.Publisher
	Validator validate.Validator
	Tokens    *TokenService

	// PublishTimeout bounds each notification, default 5s.
	PublishTimeout time.Duration
}

// UserUpdate is a partial update. Only privileged callers may set the flags.
type UserUpdate struct {
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
	IsVerified  *bool
}

// NormalizeEmail is the canonical form stored and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *LifecycleService) validator() validate.Validator {
	if s.Validator == nil {
		return validate.Default
	}
	return s.Validator
}

// Register creates an account. Checks run in a fixed order and nothing is
// persisted unless all of them pass; the welcome event is only attempted
// once the row exists.
func (s *LifecycleService) Register(ctx context.Context, in domain.UserCreate) (domain.User, error) {
	log := slogx.FromContext(ctx)
	email := NormalizeEmail(in.Email)

	if err := s.validator().Names(in.FirstName, in.LastName); err != nil {
		metrics.ObserveRegistration("invalid")
		return domain.User{}, err
	}
	if err := s.validator().Password(in.Password, email); err != nil {
		metrics.ObserveRegistration("invalid")
		return domain.User{}, err
	}
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		metrics.ObserveRegistration("invalid")
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	// Fast path only; the unique index decides.
	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		metrics.ObserveRegistration("duplicate")
		return domain.User{}, ErrUserAlreadyExists
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, storeErr(err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:             idx.New().String(),
		Email:          email,
		HashedPassword: hash,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		IsActive:       in.IsActive,
		IsSuperuser:    in.IsSuperuser,
		IsVerified:     in.IsVerified,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		err = storeErr(err)
		if errors.Is(err, ErrUserAlreadyExists) {
			metrics.ObserveRegistration("duplicate")
		}
		return domain.User{}, err
	}

	metrics.ObserveRegistration("created")
	log.Info("user registered", "user_id", u.ID)

	s.publish(ctx, events.Welcome{Recipient: recipient(u)})
	return u, nil
}

// RequestPasswordReset sends token to the account owner. The account is not
// modified.
func (s *LifecycleService) RequestPasswordReset(ctx context.Context, u domain.User, token string) {
	slogx.FromContext(ctx).Info("password reset requested", "user_id", u.ID)
	s.publish(ctx, events.ResetPassword{Recipient: recipient(u), Token: token})
}

// ForgotPassword issues a reset token for an active account. Unknown and
// inactive addresses are ignored so callers can't enumerate accounts.
func (s *LifecycleService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.Store.Users().GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeErr(err)
	}
	if !u.IsActive {
		return nil
	}

	token, err := s.Tokens.IssueReset(u)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	s.RequestPasswordReset(ctx, u, token)
	return nil
}

// ResetPassword completes a reset started by ForgotPassword.
func (s *LifecycleService) ResetPassword(ctx context.Context, token, password string) (domain.User, error) {
	claims, err := s.Tokens.VerifyReset(token)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidResetToken
	}
	if err != nil {
		return domain.User{}, storeErr(err)
	}
	if !u.IsActive || !MatchesPassword(claims, u) {
		return domain.User{}, ErrInvalidResetToken
	}

	u, err = s.setPassword(ctx, u, password)
	if err != nil {
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("password reset completed", "user_id", u.ID)
	return u, nil
}

// GetUser loads an account by id.
func (s *LifecycleService) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	return u, storeErr(err)
}

// UpdateUser applies upd to the account id. A new password goes through the
// same rules as registration.
func (s *LifecycleService) UpdateUser(ctx context.Context, id string, upd UserUpdate) (domain.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	patch := domain.UserPatch{
		IsActive:    upd.IsActive,
		IsSuperuser: upd.IsSuperuser,
		IsVerified:  upd.IsVerified,
	}
	if upd.Password != nil {
		if err := s.validator().Password(*upd.Password, u.Email); err != nil {
			return domain.User{}, err
		}
		hash, err := cryptox.HashPassword(*upd.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		patch.HashedPassword = &hash
	}

	updated, err := s.Store.Users().UpdateUser(ctx, id, patch)
	return updated, storeErr(err)
}

// GetProfilePicturePath returns the stored picture name, "" if none. The
// account is looked up again so a token outliving its account fails.
func (s *LifecycleService) GetProfilePicturePath(ctx context.Context, u domain.User) (string, error) {
	current, err := s.confirmExists(ctx, u)
	if err != nil {
		return "", err
	}
	return current.ProfilePicturePath, nil
}

// ChangeProfilePicturePath records name as the user's picture.
func (s *LifecycleService) ChangeProfilePicturePath(ctx context.Context, u domain.User, name string) (domain.User, error) {
	return patchCurrent(ctx, s.Store, u, func(domain.User) (domain.UserPatch, error) {
		return domain.UserPatch{ProfilePicturePath: &name}, nil
	})
}

func (s *LifecycleService) confirmExists(ctx context.Context, u domain.User) (domain.User, error) {
	current, err := s.Store.Users().GetUserByEmail(ctx, u.Email)
	if err != nil {
		return domain.User{}, storeErr(err)
	}
	return current, nil
}

func (s *LifecycleService) setPassword(ctx context.Context, u domain.User, password string) (domain.User, error) {
	if err := s.validator().Password(password, u.Email); err != nil {
		return domain.User{}, err
	}
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	updated, err := s.Store.Users().UpdateUser(ctx, u.ID, domain.UserPatch{HashedPassword: &hash})
	return updated, storeErr(err)
}

// publish runs detached from the caller's cancellation: once the user row is
// committed the notification is still attempted.
func (s *LifecycleService) publish(ctx context.Context, e events.Event) {
	if s.Publisher == nil {
		return
	}
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	kind := string(e.Kind())
	if err := s.Publisher.Publish(ctx, e); err != nil {
		metrics.ObserveEventPublished(kind, "error")
		slogx.FromContext(ctx).Warn("event publish failed", "type", kind, slog.Any("error", err))
		return
	}
	metrics.ObserveEventPublished(kind, "ok")
}

func recipient(u domain.User) events.Recipient {
	return events.Recipient{EmailAddress: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}
