package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SDKClient is a client for the accounts service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new accounts service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login exchanges email and password for an access token.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	form := url.Values{
		"username": {email},
		"password": {password},
	}
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/login", strings.NewReader(form.Encode()), headers)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthenticateWithPassword logs in and wraps the token in a Session.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, error) {
	login, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.NewSession(login.AccessToken), nil
}

// NewSession wraps an existing access token.
func (c *SDKClient) NewSession(accessToken string) *Session {
	return &Session{client: c, accessToken: accessToken}
}

// ForgotPassword asks the service to email a reset token. It succeeds
// whether or not the address belongs to an account.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) error {
	req := ForgotPasswordRequest{Email: email}
	if err := req.Validate(); err != nil {
		return err
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/forgot-password", req)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// ResetPassword completes a reset with the emailed token.
func (c *SDKClient) ResetPassword(ctx context.Context, token, password string) error {
	req := ResetPasswordRequest{Token: token, Password: password}
	if err := req.Validate(); err != nil {
		return err
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/reset-password", req)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK)
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service is ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}
