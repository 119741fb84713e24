package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/events"
	"github.com/aussiebroadwan/accounts/internal/accounts/files"
	accountshttp "github.com/aussiebroadwan/accounts/internal/accounts/http"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Sup3r!secret"
	userPassword  = "Abcdef1!"
)

var otpNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "accounts-http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type sentEvents struct {
	mu  sync.Mutex
	all []events.Event
}

func (s *sentEvents) Publish(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, e)
	return nil
}

func (s *sentEvents) last() events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.all) == 0 {
		return nil
	}
	return s.all[len(s.all)-1]
}

type testServer struct {
	handler   http.Handler
	lifecycle *service.LifecycleService
	events    *sentEvents
	files     *files.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore("file::memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	secret := []byte("router-test-secret")
	signer, err := jwtx.NewHMAC(secret)
	require.NoError(t, err)
	sealer, err := cryptox.NewSealer(secret)
	require.NoError(t, err)

	sent := &sentEvents{}
	blobs := files.NewMemory("https://blobs.test/profiles")
	tokens := &service.TokenService{Signer: signer}
	lifecycle := &service.LifecycleService{Store: st, Publisher: sent, Tokens: tokens}

	boot := &service.BootstrapService{Lifecycle: lifecycle, Email: adminEmail, Password: adminPassword}
	require.NoError(t, boot.EnsureSuperuser(context.Background()))

	r := accountshttp.NewRouter("test", st, slogx.Discard())
	r.TokenService = tokens
	r.AuthService = &service.AuthService{Store: st, Tokens: tokens}
	r.LifecycleService = lifecycle
	r.ProfileService = &service.ProfileService{Lifecycle: lifecycle, Files: blobs}
	r.MFAService = &service.MFAService{Store: st, Sealer: sealer, Now: func() time.Time { return otpNow }}
	r.BrokerStatus = func() string { return "connected" }
	r.ApplyRoutes()

	return &testServer{handler: r, lifecycle: lifecycle, events: sent, files: blobs}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()

	rec := s.do(t, loginRequest(email, password))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out authsdk.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "bearer", out.TokenType)
	return out.AccessToken
}

func (s *testServer) createUser(t *testing.T, email string) domain.User {
	t.Helper()

	u, err := s.lifecycle.Register(context.Background(), domain.UserCreate{
		Email:     email,
		Password:  userPassword,
		FirstName: "Jane",
		LastName:  "Doe",
		IsActive:  true,
	})
	require.NoError(t, err)
	return u
}

func loginRequest(email, password string) *http.Request {
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/v1/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(t *testing.T, method, path, token string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) authsdk.APIError {
	t.Helper()
	var e authsdk.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "jane@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		code     string
	}{
		{"valid", "jane@example.com", userPassword, http.StatusOK, ""},
		{"wrong password", "jane@example.com", "Wrong123!", http.StatusBadRequest, authsdk.ErrorCodeLoginBadCredentials},
		{"unknown user", "ghost@example.com", userPassword, http.StatusBadRequest, authsdk.ErrorCodeLoginBadCredentials},
		{"missing password", "jane@example.com", "", http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, loginRequest(tt.email, tt.password))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				require.Equal(t, tt.code, decodeError(t, rec).Code)
			}
		})
	}
}

func TestMeRequiresToken(t *testing.T) {
	s := newTestServer(t)
	u := s.createUser(t, "jane@example.com")
	token := s.login(t, "jane@example.com", userPassword)

	rec := s.do(t, jsonRequest(t, http.MethodGet, "/v1/users/me", "", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = s.do(t, jsonRequest(t, http.MethodGet, "/v1/users/me", "not-a-jwt", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, jsonRequest(t, http.MethodGet, "/v1/users/me", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var me authsdk.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, u.ID, me.ID)
	require.Equal(t, "jane@example.com", me.Email)

	// Deactivation takes effect immediately.
	_, err := s.lifecycle.UpdateUser(context.Background(), u.ID, service.UserUpdate{IsActive: domain.Ptr(false)})
	require.NoError(t, err)
	rec = s.do(t, jsonRequest(t, http.MethodGet, "/v1/users/me", token, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "jane@example.com")
	admin := s.login(t, adminEmail, adminPassword)
	user := s.login(t, "jane@example.com", userPassword)

	valid := authsdk.RegisterRequest{Email: "new@example.com", Password: userPassword, FirstName: "New", LastName: "User"}

	rec := s.do(t, jsonRequest(t, http.MethodPost, "/v1/register", user, valid))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/register", admin, valid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created authsdk.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "new@example.com", created.Email)
	require.True(t, created.IsActive)
	require.False(t, created.IsSuperuser)

	welcome, ok := s.events.last().(events.Welcome)
	require.True(t, ok)
	require.Equal(t, "new@example.com", welcome.Recipient.EmailAddress)

	tests := []struct {
		name   string
		req    authsdk.RegisterRequest
		code   string
		reason string
	}{
		{"duplicate", valid, authsdk.ErrorCodeRegisterUserExists, ""},
		{
			"weak password",
			authsdk.RegisterRequest{Email: "weak@example.com", Password: "abcdefg1!", FirstName: "A", LastName: "B"},
			authsdk.ErrorCodeRegisterInvalidPassword,
			"Password should contain atleast 1 uppercase letter",
		},
		{
			"bad name",
			authsdk.RegisterRequest{Email: "name@example.com", Password: userPassword, FirstName: "R2", LastName: "D2"},
			authsdk.ErrorCodeRegisterInvalidName,
			"First name and last name shouldn't contain numbers or special characters",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, jsonRequest(t, http.MethodPost, "/v1/register", admin, tt.req))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			e := decodeError(t, rec)
			require.Equal(t, tt.code, e.Code)
			if tt.reason != "" {
				require.Equal(t, tt.reason, e.Description)
			}
		})
	}
}

func TestPatchMe(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "jane@example.com")
	token := s.login(t, "jane@example.com", userPassword)

	rec := s.do(t, jsonRequest(t, http.MethodPatch, "/v1/users/me", token, authsdk.UserUpdateRequest{Password: domain.Ptr("short")}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, authsdk.ErrorCodeUpdateUserInvalidPassword, decodeError(t, rec).Code)

	// Flags are ignored for regular users.
	rec = s.do(t, jsonRequest(t, http.MethodPatch, "/v1/users/me", token, authsdk.UserUpdateRequest{
		Password:    domain.Ptr("Zyxwvu9#"),
		IsSuperuser: domain.Ptr(true),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me authsdk.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.False(t, me.IsSuperuser)

	s.login(t, "jane@example.com", "Zyxwvu9#")
}

func TestAdminManagesUsers(t *testing.T) {
	s := newTestServer(t)
	u := s.createUser(t, "jane@example.com")
	admin := s.login(t, adminEmail, adminPassword)
	user := s.login(t, "jane@example.com", userPassword)

	rec := s.do(t, jsonRequest(t, http.MethodGet, "/v1/users/"+u.ID, user, nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, jsonRequest(t, http.MethodGet, "/v1/users/missing", admin, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, jsonRequest(t, http.MethodPatch, "/v1/users/"+u.ID, admin, authsdk.UserUpdateRequest{IsVerified: domain.Ptr(true)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got authsdk.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.IsVerified)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "jane@example.com")

	rec := s.do(t, jsonRequest(t, http.MethodPost, "/v1/auth/forgot-password", "", authsdk.ForgotPasswordRequest{Email: "ghost@example.com"}))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/auth/forgot-password", "", authsdk.ForgotPasswordRequest{Email: "jane@example.com"}))
	require.Equal(t, http.StatusAccepted, rec.Code)

	reset, ok := s.events.last().(events.ResetPassword)
	require.True(t, ok)

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/auth/reset-password", "", authsdk.ResetPasswordRequest{Token: "bogus", Password: "Zyxwvu9#"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, authsdk.ErrorCodeResetPasswordBadToken, decodeError(t, rec).Code)

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/auth/reset-password", "", authsdk.ResetPasswordRequest{Token: reset.Token, Password: "weakpass"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, authsdk.ErrorCodeResetPasswordInvalidPassword, decodeError(t, rec).Code)

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/auth/reset-password", "", authsdk.ResetPasswordRequest{Token: reset.Token, Password: "Zyxwvu9#"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s.login(t, "jane@example.com", "Zyxwvu9#")
}

func TestProfilePicture(t *testing.T) {
	s := newTestServer(t)
	u := s.createUser(t, "jane@example.com")
	token := s.login(t, "jane@example.com", userPassword)

	rec := s.do(t, jsonRequest(t, http.MethodGet, "/v1/users/me/profile-picture", token, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, authsdk.ErrorCodeNoProfilePicture, decodeError(t, rec).Code)

	upload := func(filename, contentType string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("image-bytes"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/v1/users/me/profile-picture", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return s.do(t, req)
	}

	rec = upload("me.gif", "image/gif")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, authsdk.ErrorCodeInvalidFileType, decodeError(t, rec).Code)

	rec = upload("me.jpg", "image/jpeg")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated authsdk.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.True(t, strings.HasSuffix(updated.ProfilePicturePath, ".jpg"))

	_, _, ok := s.files.Get(u.ID, updated.ProfilePicturePath)
	require.True(t, ok)

	rec = s.do(t, jsonRequest(t, http.MethodGet, "/v1/users/me/profile-picture", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var pic authsdk.ProfilePictureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pic))
	require.Contains(t, pic.URL, u.ID+"/"+updated.ProfilePicturePath)
}

func TestOTPFlow(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "jane@example.com")
	token := s.login(t, "jane@example.com", userPassword)

	rec := s.do(t, jsonRequest(t, http.MethodPost, "/v1/users/me/otp/generate", token, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var secret authsdk.OTPGenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &secret))
	require.NotEmpty(t, secret.Base32)

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/users/me/otp/enable", token, authsdk.OTPTokenRequest{Token: "abc"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, authsdk.ErrorCodeInvalidOTPToken, decodeError(t, rec).Code)

	code, err := totp.GenerateCode(secret.Base32, otpNow)
	require.NoError(t, err)

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/users/me/otp/enable", token, authsdk.OTPTokenRequest{Token: code}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/users/me/otp/validate", token, authsdk.OTPTokenRequest{Token: code}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res authsdk.OTPValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.OTPValid)
	require.Equal(t, otpNow.Add(time.Hour), res.OTPValidatedUntil.UTC())

	rec = s.do(t, jsonRequest(t, http.MethodPost, "/v1/users/me/otp/disable", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var me authsdk.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.False(t, me.OTPEnabled)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "jane@example.com")
	token := s.login(t, "jane@example.com", userPassword)

	rec := s.do(t, jsonRequest(t, http.MethodPost, "/v1/logout", token, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "connected", health.Checks.Broker)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `route="GET /readyz"`)
}
