package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// ErrPrincipalNotFound is returned by a PrincipalLoader when the subject no
// longer maps to an account.
var ErrPrincipalNotFound = errors.New("httpx: principal not found")

// Principal is the authenticated caller as seen by authorization checks.
type Principal struct {
	ID        string
	Active    bool
	Superuser bool
	Verified  bool
}

// PrincipalLoader resolves a token subject to its current account state.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, subject string) (Principal, error)
}

type PrincipalLoaderFunc func(ctx context.Context, subject string) (Principal, error)

func (f PrincipalLoaderFunc) LoadPrincipal(ctx context.Context, subject string) (Principal, error) {
	return f(ctx, subject)
}

// Requirement lists the account flags a route needs. Zero value admits any
// existing account.
type Requirement struct {
	Active    bool
	Superuser bool
	Verified  bool
}

var (
	RequireActive    = Requirement{Active: true}
	RequireSuperuser = Requirement{Active: true, Superuser: true}
)

// PrincipalFromContext returns the principal loaded by RequirePrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}

// RequirePrincipal loads the caller named by the token subject and enforces
// req. It must run after AuthnMiddleware.
//
// Missing or inactive accounts get 401, missing privileges get 403.
func RequirePrincipal(loader PrincipalLoader, req Requirement) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			subject, ok := SubjectFromContext(ctx)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			p, err := loader.LoadPrincipal(ctx, subject)
			switch {
			case errors.Is(err, ErrPrincipalNotFound):
				writeBearerError(w, "unknown user")
				return
			case err != nil:
				log.Error("load principal failed", "subject", subject, slog.Any("error", err))
				WriteError(w, http.StatusInternalServerError, CodeServerError, "failed to load user")
				return
			}

			if req.Active && !p.Active {
				writeBearerError(w, "inactive user")
				return
			}
			if req.Superuser && !p.Superuser {
				WriteError(w, http.StatusForbidden, CodeForbidden, "superuser privileges required")
				return
			}
			if req.Verified && !p.Verified {
				WriteError(w, http.StatusForbidden, CodeForbidden, "verified account required")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxKeyPrincipal, p)))
		})
	}
}
