package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		got, ok := httpx.BearerToken(req)
		require.Equal(t, tt.ok, ok, tt.header)
		require.Equal(t, tt.want, got, tt.header)
	}
}

func TestAuthnMiddleware(t *testing.T) {
	verifier := jwtx.VerifierFunc(func(token string) (jwtx.Claims, error) {
		if token != "good" {
			return jwtx.Claims{}, jwtx.ErrInvalidSig
		}
		return jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}, nil
	})

	var gotSubject string
	h := httpx.AuthnMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = httpx.SubjectFromContext(r.Context())
		_, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "user-1", gotSubject)
	})

	for _, header := range []string{"", "Bearer bad"} {
		t.Run("rejects "+header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")

			var body httpx.ErrorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, httpx.CodeUnauthorized, body.Code)
		})
	}
}

func TestRequirePrincipal(t *testing.T) {
	users := map[string]httpx.Principal{
		"admin":    {ID: "admin", Active: true, Superuser: true, Verified: true},
		"user":     {ID: "user", Active: true},
		"inactive": {ID: "inactive", Superuser: true},
	}
	loader := httpx.PrincipalLoaderFunc(func(_ context.Context, subject string) (httpx.Principal, error) {
		if subject == "broken" {
			return httpx.Principal{}, errors.New("db down")
		}
		p, ok := users[subject]
		if !ok {
			return httpx.Principal{}, httpx.ErrPrincipalNotFound
		}
		return p, nil
	})

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, found := httpx.PrincipalFromContext(r.Context())
		require.True(t, found)
		require.NotEmpty(t, p.ID)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		subject string
		req     httpx.Requirement
		want    int
	}{
		{"active user", "user", httpx.RequireActive, http.StatusOK},
		{"superuser route as admin", "admin", httpx.RequireSuperuser, http.StatusOK},
		{"superuser route as user", "user", httpx.RequireSuperuser, http.StatusForbidden},
		{"inactive superuser", "inactive", httpx.RequireSuperuser, http.StatusUnauthorized},
		{"unknown subject", "ghost", httpx.RequireActive, http.StatusUnauthorized},
		{"verified required", "user", httpx.Requirement{Active: true, Verified: true}, http.StatusForbidden},
		{"loader failure", "broken", httpx.RequireActive, http.StatusInternalServerError},
		{"no subject", "", httpx.RequireActive, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.subject != "" {
				req = req.WithContext(httpx.WithSubject(req.Context(), tt.subject))
			}
			rec := httptest.NewRecorder()
			httpx.RequirePrincipal(loader, tt.req)(ok).ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteError(rec, http.StatusBadRequest, "SOME_CODE", "something")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"SOME_CODE","error_description":"something"}`, rec.Body.String())
}
