package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

const (
	superuserFirstName = "Super"
	superuserLastName  = "User"
)

// BootstrapService makes sure the configured superuser exists at startup.
type BootstrapService struct {
	Lifecycle *LifecycleService
	Email     string
	Password  string
}

// EnsureSuperuser registers the superuser unless an account with that email
// is already present. Running it again is a no-op.
func (s *BootstrapService) EnsureSuperuser(ctx context.Context) error {
	log := slogx.FromContext(ctx)

	_, err := s.Lifecycle.Register(ctx, domain.UserCreate{
		Email:       s.Email,
		Password:    s.Password,
		FirstName:   superuserFirstName,
		LastName:    superuserLastName,
		IsActive:    true,
		IsSuperuser: true,
	})
	if errors.Is(err, ErrUserAlreadyExists) {
		log.Info("superuser already exists, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("superuser created", "email", NormalizeEmail(s.Email))
	return nil
}
