package httpx

import (
	"context"

	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

type ctxKey string

const (
	ctxKeySubject   ctxKey = "subject"
	ctxKeyClaims    ctxKey = "claims"
	ctxKeyPrincipal ctxKey = "principal"
)

// SubjectFromContext returns the verified token subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeySubject).(string)
	return v, ok && v != ""
}

func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(jwtx.Claims)
	return c, ok
}

// WithSubject stores subject as the authenticated caller. Tests use it to
// bypass token verification.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

func contextWithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = WithSubject(ctx, c.Subject)
	return context.WithValue(ctx, ctxKeyClaims, c)
}
