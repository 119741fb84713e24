package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingEnv is wrapped once per missing mandatory variable.
var ErrMissingEnv = errors.New("missing required environment variable")

type Config struct {
	SecretKey   string // Required: HS256 signing key, also seals OTP secrets
	DatabaseURL string // Required: sqlite:///path/to/db or postgres://...

	RabbitMQURL            string        // Required: AMQP connection string
	RabbitMQQueue          string        // Optional: notification queue (default: notifications)
	RabbitMQHeartbeat      time.Duration // Optional: AMQP heartbeat (default: 60s)
	RabbitMQConnectTimeout time.Duration // Optional: how long startup waits for the broker (default: 10s)

	SuperuserEmail    string // Required: bootstrap superuser
	SuperuserPassword string // Required: bootstrap superuser

	StorageAccountURL string // Optional: Azure blob endpoint; profile pictures are disabled without it
	StorageAccessKey  string // Optional: shared key for StorageAccountURL
	StorageContainer  string // Optional: blob container (default: profiles)

	OTPIssuer           string        // Optional: TOTP issuer label (default: accounts)
	PepperFile          string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// LoadConfig reads the environment. Every missing mandatory variable is
// reported, not just the first.
func LoadConfig() (Config, error) {
	var errs []error
	required := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingEnv, key))
		}
		return v
	}

	cfg := Config{
		SecretKey:         required("SECRET_KEY"),
		DatabaseURL:       required("DATABASE_URL"),
		RabbitMQURL:       required("RABBITMQ_CONNECTION_STRING"),
		SuperuserEmail:    required("SUPERUSER_EMAIL"),
		SuperuserPassword: required("SUPERUSER_PASSWORD"),

		RabbitMQQueue:          getEnvOrDefault("RABBITMQ_QUEUE_NAME", "notifications"),
		RabbitMQHeartbeat:      getEnvDurationOrDefault("RABBITMQ_HEARTBEAT", 60*time.Second),
		RabbitMQConnectTimeout: getEnvDurationOrDefault("RABBITMQ_CONNECT_TIMEOUT", 10*time.Second),

		StorageAccountURL: os.Getenv("STORAGE_ACCOUNT_URL"),
		StorageAccessKey:  os.Getenv("STORAGE_ACCOUNT_ACCESS_KEY"),
		StorageContainer:  getEnvOrDefault("STORAGE_CONTAINER", "profiles"),

		OTPIssuer:           getEnvOrDefault("OTP_ISSUER", "accounts"),
		PepperFile:          getEnvOrDefault("PEPPER_FILE", "pepper"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.DatabaseURL != "" {
		if _, _, err := ParseDatabaseURL(cfg.DatabaseURL); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// StorageEnabled reports whether profile pictures can be stored.
func (c Config) StorageEnabled() bool {
	return c.StorageAccountURL != "" && c.StorageAccessKey != ""
}

// ParseDatabaseURL splits a database URL into a driver name and the DSN that
// driver expects. A "+driver" suffix on the scheme, as in
// "postgresql+asyncpg://", is ignored.
func ParseDatabaseURL(raw string) (driver, dsn string, err error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "", "", fmt.Errorf("DATABASE_URL %q: missing scheme", raw)
	}
	scheme, _, _ = strings.Cut(strings.ToLower(scheme), "+")

	switch scheme {
	case "sqlite", "sqlite3":
		// sqlite:///abs/path keeps its leading slash; sqlite://rel/path is relative.
		if rest == "" {
			return "", "", fmt.Errorf("DATABASE_URL %q: missing sqlite path", raw)
		}
		return "sqlite", rest, nil
	case "postgres", "postgresql":
		return "postgres", "postgres://" + rest, nil
	default:
		return "", "", fmt.Errorf("DATABASE_URL %q: unsupported scheme %q", raw, scheme)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds, as in RABBITMQ_HEARTBEAT=60
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
