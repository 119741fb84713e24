package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

const maxJSONBody = 1 << 20

// AuthHandler serves login, logout and the password reset flow.
type AuthHandler struct {
	Auth      *service.AuthService
	Lifecycle *service.LifecycleService
}

// HandleLogin handles POST /v1/login
//
//	@Summary		Log in
//	@Description	Exchanges email and password for a bearer token valid for one hour.
//	@Tags			Auth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			username	formData	string					true	"Email address"
//	@Param			password	formData	string					true	"Password"
//	@Success		200			{object}	authsdk.LoginResponse	"Access token"
//	@Failure		400			{object}	authsdk.APIError		"LOGIN_BAD_CREDENTIALS"
//	@Failure		429			{object}	authsdk.APIError		"Rate limit exceeded"
//	@Router			/v1/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid form body").WriteError(w)
		return
	}

	email, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if email == "" || password == "" {
		authsdk.ErrInvalidRequest.WithDescription("username and password are required").WriteError(w)
		return
	}

	token, _, err := h.Auth.Login(r.Context(), email, password)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{AccessToken: token, TokenType: "bearer"})
}

// HandleLogout handles POST /v1/logout
//
//	@Summary		Log out
//	@Description	Acknowledges the end of a session. Tokens are stateless and stay valid until they expire.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.APIError	"Invalid or missing access token"
//	@Router			/v1/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if p, ok := httpx.PrincipalFromContext(r.Context()); ok {
		slogx.FromContext(r.Context()).Info("user logged out", "user_id", p.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleForgotPassword handles POST /v1/auth/forgot-password
//
//	@Summary		Request a password reset
//	@Description	Emails a reset token to the account owner. Always returns 202 so accounts can't be enumerated.
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.ForgotPasswordRequest	true	"Email address"
//	@Success		202
//	@Failure		400	{object}	authsdk.APIError	"Malformed request"
//	@Router			/v1/auth/forgot-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	if err := h.Lifecycle.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleResetPassword handles POST /v1/auth/reset-password
//
//	@Summary		Reset a password
//	@Description	Sets a new password using the emailed token. A token stops working once the password changes.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Token and new password"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.APIError	"RESET_PASSWORD_BAD_TOKEN or RESET_PASSWORD_INVALID_PASSWORD"
//	@Router			/v1/auth/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	u, err := h.Lifecycle.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		writeServiceError(w, r, err, authsdk.ErrorCodeResetPasswordInvalidPassword)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// readJSON decodes the request body into v, writing a 400 on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return false
	}
	return true
}
