package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest = "INVALID_REQUEST"
	ErrorCodeUnauthorized   = httpx.CodeUnauthorized
	ErrorCodeForbidden      = httpx.CodeForbidden
	ErrorCodeServerError    = httpx.CodeServerError
	ErrorCodeUnavailable    = "SERVICE_UNAVAILABLE"
	ErrorCodeNotFound       = "NOT_FOUND"

	ErrorCodeLoginBadCredentials = "LOGIN_BAD_CREDENTIALS"

	ErrorCodeRegisterInvalidEmail    = "REGISTER_INVALID_EMAIL"
	ErrorCodeRegisterInvalidName     = "REGISTER_INVALID_NAME"
	ErrorCodeRegisterInvalidPassword = "REGISTER_INVALID_PASSWORD"
	ErrorCodeRegisterUserExists      = "REGISTER_USER_ALREADY_EXISTS"

	ErrorCodeResetPasswordBadToken        = "RESET_PASSWORD_BAD_TOKEN"
	ErrorCodeResetPasswordInvalidPassword = "RESET_PASSWORD_INVALID_PASSWORD"

	ErrorCodeUpdateUserInvalidPassword = "UPDATE_USER_INVALID_PASSWORD"

	ErrorCodeInvalidOTPToken      = "INVALID_OTP_TOKEN"
	ErrorCodeOTPNotGenerated      = "OTP_NOT_GENERATED"
	ErrorCodeOTPNotEnabled        = "OTP_NOT_ENABLED"
	ErrorCodeOTPAlreadyEnabled    = "OTP_ALREADY_ENABLED"
	ErrorCodeNoProfilePicture     = "NO_PROFILE_PICTURE"
	ErrorCodeInvalidFileType      = "INVALID_FILE_TYPE"
	ErrorCodeFileTooLarge         = "FILE_TOO_LARGE"
	ErrorCodeStorageNotConfigured = "STORAGE_NOT_CONFIGURED"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the error body every endpoint returns. The server writes it
// with WriteError; the client hands it back from failed calls.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine readable error code, e.g. "LOGIN_BAD_CREDENTIALS"
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e to w.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

// WithDescription returns a copy of e carrying description.
func (e *APIError) WithDescription(description string) *APIError {
	c := *e
	c.Description = description
	return &c
}

// Is matches on status and code so callers can use errors.Is against the
// predefined values regardless of the description.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrBadCredentials covers unknown email, wrong password and inactive
	// accounts alike.
	ErrBadCredentials = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeLoginBadCredentials,
		Description: "invalid email or password",
	}

	ErrUserAlreadyExists = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRegisterUserExists,
		Description: "a user with this email already exists",
	}

	ErrInvalidEmail = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRegisterInvalidEmail,
		Description: "invalid email address",
	}

	ErrResetBadToken = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeResetPasswordBadToken,
		Description: "the reset token is invalid or expired",
	}

	ErrInvalidOTPToken = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidOTPToken,
		Description: "the one-time password is invalid",
	}

	ErrOTPNotGenerated = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeOTPNotGenerated,
		Description: "generate an OTP secret first",
	}

	ErrOTPNotEnabled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeOTPNotEnabled,
		Description: "OTP is not enabled for this user",
	}

	ErrOTPAlreadyEnabled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeOTPAlreadyEnabled,
		Description: "OTP is already enabled for this user",
	}

	ErrNoProfilePicture = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNoProfilePicture,
		Description: "no profile picture uploaded",
	}

	ErrInvalidFileType = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidFileType,
		Description: "only image/jpeg, image/jpg and image/png are accepted",
	}

	ErrFileTooLarge = &APIError{
		StatusCode:  http.StatusRequestEntityTooLarge,
		Code:        ErrorCodeFileTooLarge,
		Description: "file too large",
	}

	ErrStorageNotConfigured = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeStorageNotConfigured,
		Description: "file storage is not configured",
	}

	ErrUnauthorized = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUnauthorized,
		Description: "the access token is missing, invalid or expired",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeForbidden,
		Description: "superuser privileges required",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "user not found",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrUnavailable = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeUnavailable,
		Description: "a backing service is unavailable",
	}
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp httpx.ErrorBody
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Code,
			Description: errResp.Description,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
