package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/files"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/validate"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// writeServiceError maps a service error onto its API error. passwordCode
// names the weak-password code for the endpoint, since registration, reset
// and update each report it differently.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, passwordCode string) {
	apiErr := toAPIError(err, passwordCode)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
	}
	apiErr.WriteError(w)
}

func toAPIError(err error, passwordCode string) *authsdk.APIError {
	switch {
	case errors.Is(err, validate.ErrWeakPassword):
		return &authsdk.APIError{StatusCode: http.StatusBadRequest, Code: passwordCode, Description: validate.Reason(err)}
	case errors.Is(err, validate.ErrInvalidName):
		return &authsdk.APIError{StatusCode: http.StatusBadRequest, Code: authsdk.ErrorCodeRegisterInvalidName, Description: validate.Reason(err)}
	case errors.Is(err, service.ErrInvalidEmail):
		return authsdk.ErrInvalidEmail
	case errors.Is(err, service.ErrUserAlreadyExists):
		return authsdk.ErrUserAlreadyExists
	case errors.Is(err, service.ErrUserNotFound):
		return authsdk.ErrNotFound
	case errors.Is(err, service.ErrBadCredentials):
		return authsdk.ErrBadCredentials
	case errors.Is(err, service.ErrInvalidResetToken):
		return authsdk.ErrResetBadToken
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrExpiredToken):
		return authsdk.ErrUnauthorized
	case errors.Is(err, service.ErrInvalidOTPToken):
		return authsdk.ErrInvalidOTPToken
	case errors.Is(err, service.ErrOTPNotGenerated):
		return authsdk.ErrOTPNotGenerated
	case errors.Is(err, service.ErrOTPNotEnabled):
		return authsdk.ErrOTPNotEnabled
	case errors.Is(err, service.ErrOTPAlreadyEnabled):
		return authsdk.ErrOTPAlreadyEnabled
	case errors.Is(err, service.ErrNoProfilePicture):
		return authsdk.ErrNoProfilePicture
	case errors.Is(err, files.ErrUnsupportedType):
		return authsdk.ErrInvalidFileType
	case errors.Is(err, files.ErrTooLarge):
		return authsdk.ErrFileTooLarge
	case errors.Is(err, files.ErrDisabled):
		return authsdk.ErrStorageNotConfigured
	case errors.Is(err, service.ErrStoreUnavailable):
		return authsdk.ErrUnavailable
	default:
		return authsdk.ErrServerError
	}
}

func toUserResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		IsActive:           u.IsActive,
		IsSuperuser:        u.IsSuperuser,
		IsVerified:         u.IsVerified,
		ProfilePicturePath: u.ProfilePicturePath,
		OTPEnabled:         u.OTPEnabled,
		OTPVerified:        u.OTPVerified,
		OTPEnabledAt:       u.OTPEnabledAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}
