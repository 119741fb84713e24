package http

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// principalLoader resolves token subjects against the user store on every
// request, so deactivation takes effect before the token expires.
func principalLoader(lifecycle *service.LifecycleService) httpx.PrincipalLoader {
	return httpx.PrincipalLoaderFunc(func(ctx context.Context, subject string) (httpx.Principal, error) {
		u, err := lifecycle.GetUser(ctx, subject)
		if errors.Is(err, service.ErrUserNotFound) {
			return httpx.Principal{}, httpx.ErrPrincipalNotFound
		}
		if err != nil {
			return httpx.Principal{}, err
		}
		return httpx.Principal{
			ID:        u.ID,
			Active:    u.IsActive,
			Superuser: u.IsSuperuser,
			Verified:  u.IsVerified,
		}, nil
	})
}
