package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/metrics"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"

	_ "github.com/aussiebroadwan/accounts/api/accounts" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	// BrokerStatus reports the event broker state on /readyz. Optional.
	BrokerStatus func() string

	TokenService     *service.TokenService
	AuthService      *service.AuthService
	LifecycleService *service.LifecycleService
	ProfileService   *service.ProfileService
	MFAService       *service.MFAService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Request logging outermost; metrics sit next to the mux so they see
	// the matched pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerProfile()
	r.registerOTP()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Accounts Service API
//	@version		0.1.0
//	@description	User accounts, login and password reset. Access tokens are HS256 JWTs valid for one hour.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/accounts
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(metrics.Middleware(r.Mux), r.middlewares...).ServeHTTP(w, req)
}

// authed verifies the bearer token and loads the caller against req.
func (r *Router) authed(h http.HandlerFunc, req httpx.Requirement, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.TokenService.Verifier()),
		httpx.RequirePrincipal(principalLoader(r.LifecycleService), req),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.AuthService, Lifecycle: r.LifecycleService}

	// POST /login - strict rate limit by IP + username (brute force)
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	r.Mux.Handle("POST /v1/logout", r.authed(h.HandleLogout, httpx.RequireActive, httpx.LenientLimit))

	// Reset flow is public; strict limits since both endpoints send email
	// or accept secrets.
	r.Mux.Handle("POST /v1/auth/forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Lifecycle: r.LifecycleService}

	r.Mux.Handle("POST /v1/register", r.authed(h.HandleRegister, httpx.RequireSuperuser, httpx.StrictLimit))

	r.Mux.Handle("GET /v1/users/me", r.authed(h.HandleGetMe, httpx.RequireActive, httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/users/me", r.authed(h.HandlePatchMe, httpx.RequireActive, httpx.ModerateLimit))

	r.Mux.Handle("GET /v1/users/{id}", r.authed(h.HandleGetUser, httpx.RequireSuperuser, httpx.ModerateLimit))
	r.Mux.Handle("PATCH /v1/users/{id}", r.authed(h.HandlePatchUser, httpx.RequireSuperuser, httpx.ModerateLimit))
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{Lifecycle: r.LifecycleService, Profiles: r.ProfileService}

	r.Mux.Handle("PUT /v1/users/me/profile-picture", r.authed(h.HandleUpload, httpx.RequireActive, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/users/me/profile-picture", r.authed(h.HandleGet, httpx.RequireActive, httpx.LenientLimit))
}

func (r *Router) registerOTP() {
	h := &OTPHandler{Lifecycle: r.LifecycleService, MFA: r.MFAService}

	r.Mux.Handle("POST /v1/users/me/otp/generate", r.authed(h.HandleGenerate, httpx.RequireActive, httpx.ModerateLimit))
	// Code checks get the strict limit to slow down guessing.
	r.Mux.Handle("POST /v1/users/me/otp/enable", r.authed(h.HandleEnable, httpx.RequireActive, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/users/me/otp/validate", r.authed(h.HandleValidate, httpx.RequireActive, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/users/me/otp/disable", r.authed(h.HandleDisable, httpx.RequireActive, httpx.ModerateLimit))
}

func (r *Router) registerSystem() {
	// Health check endpoints - public rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.BrokerStatus),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics", metrics.Handler())
}
