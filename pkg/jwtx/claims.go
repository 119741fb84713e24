package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audiences separate token purposes signed with the same secret, so a reset
// token can never be replayed as an access token and vice versa.
const (
	AudienceAuth  = "accounts:auth"
	AudienceReset = "accounts:reset"
)

// DefaultAccessTokenTTL is the lifetime of login tokens.
const DefaultAccessTokenTTL = 3600 * time.Second

type Claims struct {
	jwt.RegisteredClaims

	// PasswordFingerprint binds reset tokens to the password hash they were
	// issued against.
	PasswordFingerprint string `json:"password_fgpt,omitempty"`
}

// NewClaims builds claims for subject valid from now until now+ttl.
func NewClaims(subject, audience string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
