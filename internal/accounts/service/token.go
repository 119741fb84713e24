package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// TokenService issues the stateless bearer tokens handed out at login and
// the single-purpose tokens used to reset a password. Both are HS256 and
// signed with the same secret; audiences keep them apart.
type TokenService struct {
	Signer   *jwtx.HMAC
	TTL      time.Duration // access tokens, default 3600s
	ResetTTL time.Duration // reset tokens, default 3600s
	Now      func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func ttlOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return d
}

// Issue returns an access token for userID.
func (s *TokenService) Issue(userID string) (string, error) {
	return s.Signer.Sign(jwtx.NewClaims(userID, jwtx.AudienceAuth, ttlOrDefault(s.TTL), s.now()))
}

// Verify returns the user id carried by an access token.
func (s *TokenService) Verify(token string) (string, error) {
	claims, err := s.Signer.Parse(token, jwtx.AudienceAuth)
	if err != nil {
		return "", mapTokenErr(err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Verifier adapts Verify for the authentication middleware.
func (s *TokenService) Verifier() jwtx.Verifier {
	return jwtx.VerifierFunc(func(token string) (jwtx.Claims, error) {
		claims, err := s.Signer.Parse(token, jwtx.AudienceAuth)
		if err != nil {
			return jwtx.Claims{}, mapTokenErr(err)
		}
		return claims, nil
	})
}

// IssueReset returns a reset token bound to the user's current password
// hash. Changing the password invalidates every outstanding reset token.
func (s *TokenService) IssueReset(u domain.User) (string, error) {
	c := jwtx.NewClaims(u.ID, jwtx.AudienceReset, ttlOrDefault(s.ResetTTL), s.now())
	c.PasswordFingerprint = cryptox.Fingerprint(u.HashedPassword)
	return s.Signer.Sign(c)
}

// VerifyReset returns the subject of a reset token. The caller must still
// check it against the user with MatchesPassword.
func (s *TokenService) VerifyReset(token string) (jwtx.Claims, error) {
	claims, err := s.Signer.Parse(token, jwtx.AudienceReset)
	if err != nil || claims.Subject == "" {
		return jwtx.Claims{}, ErrInvalidResetToken
	}
	return claims, nil
}

// MatchesPassword reports whether c was issued against u's current hash.
func MatchesPassword(c jwtx.Claims, u domain.User) bool {
	want := cryptox.Fingerprint(u.HashedPassword)
	return subtle.ConstantTimeCompare([]byte(c.PasswordFingerprint), []byte(want)) == 1
}

func mapTokenErr(err error) error {
	if errors.Is(err, jwtx.ErrExpired) {
		return ErrExpiredToken
	}
	return ErrInvalidToken
}
