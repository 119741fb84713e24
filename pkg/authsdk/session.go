package authsdk

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Session is an authenticated view of the service. Access tokens are not
// refreshed; log in again when calls start failing with ErrUnauthorized.
type Session struct {
	client      *SDKClient
	accessToken string
}

// AccessToken returns the bearer token used by the session.
func (s *Session) AccessToken() string {
	return s.accessToken
}

// Logout tells the service the session is over. Tokens are stateless, so
// the server only acknowledges it.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/logout", nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ============================================================================
// Users
// ============================================================================

// Me returns the session's own account.
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	return s.getUser(ctx, "/v1/users/me")
}

// UpdateMe changes the session's own password.
func (s *Session) UpdateMe(ctx context.Context, req UserUpdateRequest) (*UserResponse, error) {
	return s.patchUser(ctx, "/v1/users/me", req)
}

// GetUser returns any account. Requires a superuser session.
func (s *Session) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	return s.getUser(ctx, "/v1/users/"+id)
}

// UpdateUser changes any account. Requires a superuser session.
func (s *Session) UpdateUser(ctx context.Context, id string, req UserUpdateRequest) (*UserResponse, error) {
	return s.patchUser(ctx, "/v1/users/"+id, req)
}

// Register creates an account. Requires a superuser session.
func (s *Session) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/register", req)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Session) getUser(ctx context.Context, path string) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Session) patchUser(ctx context.Context, path string, req UserUpdateRequest) (*UserResponse, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPatch, path, req)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// ============================================================================
// Profile Picture
// ============================================================================

// UploadProfilePicture replaces the session's profile picture.
func (s *Session) UploadProfilePicture(ctx context.Context, filename, contentType string, data []byte) (*UserResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	headers := map[string]string{"Content-Type": mw.FormDataContentType()}
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/v1/users/me/profile-picture", &body, headers)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfilePictureURL returns a short-lived read URL for the session's picture.
func (s *Session) ProfilePictureURL(ctx context.Context) (string, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/users/me/profile-picture", nil, nil)
	if err != nil {
		return "", err
	}

	var out ProfilePictureResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.URL, nil
}

// ============================================================================
// OTP
// ============================================================================

// GenerateOTP creates a new TOTP secret for enrolment.
func (s *Session) GenerateOTP(ctx context.Context) (*OTPGenerateResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/users/me/otp/generate", nil, nil)
	if err != nil {
		return nil, err
	}

	var out OTPGenerateResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnableOTP turns on the second factor with a code from the app.
func (s *Session) EnableOTP(ctx context.Context, token string) (*UserResponse, error) {
	var out UserResponse
	if err := s.otpCall(ctx, "/v1/users/me/otp/enable", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateOTP checks a code for an enrolled user.
func (s *Session) ValidateOTP(ctx context.Context, token string) (*OTPValidateResponse, error) {
	var out OTPValidateResponse
	if err := s.otpCall(ctx, "/v1/users/me/otp/validate", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisableOTP removes the second factor.
func (s *Session) DisableOTP(ctx context.Context) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/users/me/otp/disable", nil, nil)
	if err != nil {
		return nil, err
	}

	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) otpCall(ctx context.Context, path, token string, target any) error {
	req := OTPTokenRequest{Token: token}
	if err := req.Validate(); err != nil {
		return err
	}

	resp, err := s.doAuthJSON(ctx, http.MethodPost, path, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}
