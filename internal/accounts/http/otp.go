package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// OTPHandler serves TOTP enrolment for the caller.
type OTPHandler struct {
	Lifecycle *service.LifecycleService
	MFA       *service.MFAService
}

// HandleGenerate handles POST /v1/users/me/otp/generate
//
//	@Summary		Generate OTP secret
//	@Description	Creates a TOTP secret for the caller. The secret is only shown here.
//	@Tags			OTP
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.OTPGenerateResponse
//	@Failure		400	{object}	authsdk.APIError	"OTP_ALREADY_ENABLED"
//	@Router			/v1/users/me/otp/generate [post].
func (h *OTPHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(h.Lifecycle, r)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	secret, err := h.MFA.Generate(r.Context(), u)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.OTPGenerateResponse{Base32: secret.Base32, OTPAuthURL: secret.AuthURL})
}

// HandleEnable handles POST /v1/users/me/otp/enable
//
//	@Summary		Enable OTP
//	@Tags			OTP
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.OTPTokenRequest	true	"Code from the authenticator app"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.APIError	"INVALID_OTP_TOKEN or OTP_NOT_GENERATED"
//	@Router			/v1/users/me/otp/enable [post].
func (h *OTPHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	u, code, ok := h.readCode(w, r)
	if !ok {
		return
	}

	updated, err := h.MFA.Enable(r.Context(), u, code)
	if err != nil {
		slogx.FromContext(r.Context()).Warn("otp enable rejected", "user_id", u.ID, "err", err)
		writeServiceError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

// HandleValidate handles POST /v1/users/me/otp/validate
//
//	@Summary		Validate OTP
//	@Tags			OTP
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.OTPTokenRequest	true	"Code from the authenticator app"
//	@Success		200		{object}	authsdk.OTPValidateResponse
//	@Failure		400		{object}	authsdk.APIError	"INVALID_OTP_TOKEN or OTP_NOT_ENABLED"
//	@Router			/v1/users/me/otp/validate [post].
func (h *OTPHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	u, code, ok := h.readCode(w, r)
	if !ok {
		return
	}

	res, err := h.MFA.Validate(r.Context(), u, code)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.OTPValidateResponse{OTPValid: res.Valid, OTPValidatedUntil: res.ValidatedUntil})
}

// HandleDisable handles POST /v1/users/me/otp/disable
//
//	@Summary		Disable OTP
//	@Tags			OTP
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse
//	@Router			/v1/users/me/otp/disable [post].
func (h *OTPHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(h.Lifecycle, r)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	updated, err := h.MFA.Disable(r.Context(), u)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *OTPHandler) readCode(w http.ResponseWriter, r *http.Request) (u domain.User, code string, ok bool) {
	var req authsdk.OTPTokenRequest
	if !readJSON(w, r, &req) {
		return u, "", false
	}
	if err := req.Validate(); err != nil {
		authsdk.ErrInvalidOTPToken.WriteError(w)
		return u, "", false
	}

	u, err := currentUser(h.Lifecycle, r)
	if err != nil {
		writeServiceError(w, r, err, "")
		return u, "", false
	}
	return u, req.Token, true
}
