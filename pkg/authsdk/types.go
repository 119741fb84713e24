package authsdk

import (
	"time"
)

// ============================================================================
// Login
// ============================================================================

// LoginResponse is returned from POST /v1/login.
type LoginResponse struct {
	// AccessToken is the HS256 JWT used as a bearer token
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`
}

// ============================================================================
// Users
// ============================================================================

// RegisterRequest is the body of POST /v1/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// IsActive defaults to true when omitted
	IsActive    *bool `json:"is_active,omitempty"`
	IsSuperuser bool  `json:"is_superuser,omitempty"`
	IsVerified  bool  `json:"is_verified,omitempty"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`

	ProfilePicturePath string `json:"profile_picture_path,omitempty"`

	OTPEnabled   bool       `json:"otp_enabled"`
	OTPVerified  bool       `json:"otp_verified"`
	OTPEnabledAt *time.Time `json:"otp_enabled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserUpdateRequest is the body of PATCH /v1/users/me and
// PATCH /v1/users/{id}. The flags are only honoured for superusers.
type UserUpdateRequest struct {
	Password    *string `json:"password,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
	IsVerified  *bool   `json:"is_verified,omitempty"`
}

// ============================================================================
// Password Reset
// ============================================================================

// ForgotPasswordRequest is the body of POST /v1/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /v1/auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ============================================================================
// Profile Picture
// ============================================================================

// ProfilePictureResponse carries a time-limited read URL.
type ProfilePictureResponse struct {
	URL string `json:"url"`
}

// ============================================================================
// OTP
// ============================================================================

// OTPGenerateResponse is returned once when a secret is generated.
type OTPGenerateResponse struct {
	Base32     string `json:"base32"`
	OTPAuthURL string `json:"otpauth_url"`
}

// OTPTokenRequest carries a code from the user's authenticator app.
type OTPTokenRequest struct {
	Token string `json:"token"`
}

// OTPValidateResponse is returned from a successful validation.
type OTPValidateResponse struct {
	OTPValid          bool      `json:"otp_valid"`
	OTPValidatedUntil time.Time `json:"otp_validated_until"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Broker reports the message broker connection. A disconnected broker
	// does not make the service unready.
	Broker string `json:"broker,omitempty"`
}
