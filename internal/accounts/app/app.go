package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/events/rabbitmq"
	"github.com/aussiebroadwan/accounts/internal/accounts/files"
	"github.com/aussiebroadwan/accounts/internal/accounts/files/azure"
	httpapi "github.com/aussiebroadwan/accounts/internal/accounts/http"
	"github.com/aussiebroadwan/accounts/internal/accounts/metrics"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/postgres"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...app.BuildVersion=".
var BuildVersion = "v0.1.0"

// Application encapsulates the accounts service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	signer    *jwtx.HMAC
	sealer    *cryptox.Sealer
	publisher *rabbitmq.Publisher
	files     files.Manager

	// Services
	tokenService     *service.TokenService
	authService      *service.AuthService
	lifecycleService *service.LifecycleService
	bootstrapService *service.BootstrapService
	profileService   *service.ProfileService
	mfaService       *service.MFAService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
// and the superuser in place.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "accounts-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initCrypto(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initPublisher(ctx)

	if err := app.initFiles(ctx); err != nil {
		app.closeBackends()
		return nil, err
	}

	app.initServices()

	if err := app.bootstrapService.EnsureSuperuser(slogx.WithContext(ctx, app.logger)); err != nil {
		app.closeBackends()
		return nil, fmt.Errorf("failed to bootstrap superuser: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("accounts service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.closeBackends()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down accounts service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("accounts service stopped")
	return nil
}

// closeBackends stops the broker connection and closes the database.
func (app *Application) closeBackends() error {
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("error closing broker connection", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase opens the store named by DATABASE_URL and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	driver, dsn, err := ParseDatabaseURL(app.cfg.DatabaseURL)
	if err != nil {
		return err
	}

	switch driver {
	case "postgres":
		app.db, err = postgres.NewStore(ctx, dsn)
	default:
		app.db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.db.ApplyMigrations(); err != nil {
		_ = app.db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", driver)
	return nil
}

func (app *Application) initCrypto() error {
	signer, err := jwtx.NewHMAC([]byte(app.cfg.SecretKey))
	if err != nil {
		return fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer

	sealer, err := cryptox.NewSealer([]byte(app.cfg.SecretKey))
	if err != nil {
		return fmt.Errorf("failed to initialize secret sealer: %w", err)
	}
	app.sealer = sealer
	return nil
}

// initPublisher starts the broker connection. A broker that is down at
// startup is not fatal; the publisher keeps reconnecting in the background
// and notifications are dropped until it succeeds.
func (app *Application) initPublisher(ctx context.Context) {
	app.publisher = rabbitmq.NewPublisher(rabbitmq.Config{
		URL:       app.cfg.RabbitMQURL,
		Queue:     app.cfg.RabbitMQQueue,
		Heartbeat: app.cfg.RabbitMQHeartbeat,
		Logger:    app.logger,
		OnStateChange: func(s rabbitmq.State) {
			metrics.SetBrokerState(int(s))
		},
	})

	ctx, cancel := context.WithTimeout(ctx, app.cfg.RabbitMQConnectTimeout)
	defer cancel()

	if err := app.publisher.Connect(ctx); err != nil {
		app.logger.Warn("event broker unavailable at startup, continuing",
			"queue", app.cfg.RabbitMQQueue,
			"error", err,
		)
		return
	}
	app.logger.Info("event broker connected", "queue", app.cfg.RabbitMQQueue)
}

func (app *Application) initFiles(ctx context.Context) error {
	if !app.cfg.StorageEnabled() {
		app.logger.Warn("profile picture storage not configured")
		app.files = files.Disabled{}
		return nil
	}

	mgr, err := azure.New(azure.Config{
		AccountURL: app.cfg.StorageAccountURL,
		AccessKey:  app.cfg.StorageAccessKey,
		Container:  app.cfg.StorageContainer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgr.EnsureContainer(ctx); err != nil {
		return fmt.Errorf("failed to prepare blob container %q: %w", app.cfg.StorageContainer, err)
	}

	app.files = mgr
	app.logger.Info("blob storage ready", "container", app.cfg.StorageContainer)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Signer:   app.signer,
		TTL:      jwtx.DefaultAccessTokenTTL,
		ResetTTL: jwtx.DefaultAccessTokenTTL,
	}

	app.lifecycleService = &service.LifecycleService{
		Store:     app.db,
		Publisher: app.publisher,
		Tokens:    app.tokenService,
	}
	app.authService = &service.AuthService{
		Store:  app.db,
		Tokens: app.tokenService,
	}
	app.bootstrapService = &service.BootstrapService{
		Lifecycle: app.lifecycleService,
		Email:     app.cfg.SuperuserEmail,
		Password:  app.cfg.SuperuserPassword,
	}
	app.profileService = &service.ProfileService{
		Lifecycle: app.lifecycleService,
		Files:     app.files,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Sealer: app.sealer,
		Issuer: app.cfg.OTPIssuer,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	// Wire services to router
	router.BrokerStatus = func() string { return app.publisher.State().String() }
	router.TokenService = app.tokenService
	router.AuthService = app.authService
	router.LifecycleService = app.lifecycleService
	router.ProfileService = app.profileService
	router.MFAService = app.mfaService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
