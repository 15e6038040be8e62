package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(LoadValidated),
	fx.Provide(NewNotificationSettingsHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Auth         AuthConfig
	Bootstrap    BootstrapConfig
	Email        EmailConfig
	Redis        RedisConfig
	Notify       NotifyConfig
	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// AuthConfig is read once at startup. SecretKey signs every bearer token.
type AuthConfig struct {
	SecretKey      string
	Algorithm      string
	AccessTokenTTL time.Duration
	BcryptCost     int
}

// BootstrapConfig describes the single superadmin seeded at startup.
type BootstrapConfig struct {
	SuperadminEmail     string
	SuperadminPassword  string
	SuperadminFirstName string
	SuperadminLastName  string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type NotifyConfig struct {
	Workers    int
	QueueSize  int
	RatePerSec float64
	ConfigPath string
}

const (
	defaultAlgorithm  = "HS256"
	defaultBcryptCost = 12
	minBcryptCost     = 4
	maxBcryptCost     = 31
)

var (
	ErrMissingSecretKey    = errors.New("AUTH_SECRET_KEY is required")
	ErrUnsupportedAlg      = errors.New("unsupported AUTH_ALGORITHM")
	ErrInvalidTokenTTL     = errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	ErrInvalidBcryptCost   = errors.New("AUTH_BCRYPT_COST out of range")
	ErrIncompleteBootstrap = errors.New("SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD must be set together")
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "complytics"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Auth: AuthConfig{
			SecretKey:      strings.TrimSpace(getenv("AUTH_SECRET_KEY", "")),
			Algorithm:      strings.ToUpper(strings.TrimSpace(getenv("AUTH_ALGORITHM", defaultAlgorithm))),
			AccessTokenTTL: time.Duration(getenvInt64("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
			BcryptCost:     getenvInt("AUTH_BCRYPT_COST", defaultBcryptCost),
		},
		Bootstrap: BootstrapConfig{
			SuperadminEmail:     strings.TrimSpace(getenv("SUPERADMIN_EMAIL", "")),
			SuperadminPassword:  getenv("SUPERADMIN_PASSWORD", ""),
			SuperadminFirstName: getenv("SUPERADMIN_FIRST_NAME", "Super"),
			SuperadminLastName:  getenv("SUPERADMIN_LAST_NAME", "Admin"),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			FromEmail:    getenv("FROM_EMAIL", "no-reply@complytics.local"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Notify: NotifyConfig{
			Workers:    getenvInt("NOTIFY_WORKERS", 2),
			QueueSize:  getenvInt("NOTIFY_QUEUE_SIZE", 256),
			RatePerSec: getenvFloat("NOTIFY_RATE_PER_SEC", 5),
			ConfigPath: getenv("NOTIFY_CONFIG_PATH", "."),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "complytics"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	return cfg
}

// LoadValidated is Load followed by Validate. A configuration that cannot
// sign tokens must stop the process before it serves anything.
func LoadValidated() (Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return ErrMissingSecretKey
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlg, c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return ErrInvalidTokenTTL
	}
	if c.Auth.BcryptCost < minBcryptCost || c.Auth.BcryptCost > maxBcryptCost {
		return fmt.Errorf("%w: %d", ErrInvalidBcryptCost, c.Auth.BcryptCost)
	}
	if (c.Bootstrap.SuperadminEmail == "") != (c.Bootstrap.SuperadminPassword == "") {
		return ErrIncompleteBootstrap
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
