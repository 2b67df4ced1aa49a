package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full runtime configuration, assembled from environment
// variables so main stays lean.
type Config struct {
	Environment string
	// SeedFile is applied at startup when set; with no DATABASE_URL it is
	// the only way users and applications reach the in-memory stores.
	SeedFile    string
	Server      Server
	Auth        AuthConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Log         LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	// ReadTimeout bounds reading a whole request; form posts and token
	// exchanges are small.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// AdminToken guards application secret/key rotation routes. Empty disables them.
	AdminToken string
}

// AuthConfig holds token lifetimes and signing material.
type AuthConfig struct {
	JWTSigningKey   string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthCodeTTL     time.Duration
	ConsentTTL      time.Duration
	DefaultScopes   []string
	// PortalAudience is the audience of tokens minted for the SSO portal itself.
	PortalAudience string
	// ErrorPageURL receives browsers when the caller's redirect cannot be trusted.
	// Empty renders the local error page instead.
	ErrorPageURL string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads optional dotenv files, then the environment. Missing files are
// ignored; variables already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() Config {
	return Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		SeedFile:    os.Getenv("SEED_FILE"),
		Server: Server{
			Addr:            getEnv("SSO_ADDR", ":8080"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			AdminToken:      os.Getenv("ADMIN_API_TOKEN"),
		},
		Auth: AuthConfig{
			JWTSigningKey:   getEnv("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:       getEnv("JWT_ISSUER", "campus-sso"),
			AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
			RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
			AuthCodeTTL:     getDuration("AUTH_CODE_TTL", 5*time.Minute),
			ConsentTTL:      getDuration("PENDING_CONSENT_TTL", 10*time.Minute),
			DefaultScopes:   getList("DEFAULT_SCOPES", []string{"profile", "email", "student_academics"}),
			PortalAudience:  getEnv("PORTAL_AUDIENCE", "campus-portal"),
			ErrorPageURL:    os.Getenv("ERROR_PAGE_URL"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    getList("KAFKA_BROKERS", nil),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "sso.audit"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate rejects configurations that would weaken token guarantees.
func (c Config) Validate() error {
	var errs []error
	if c.Environment == "production" && c.Auth.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}
	for name, ttl := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL":    c.Auth.AccessTokenTTL,
		"REFRESH_TOKEN_TTL":   c.Auth.RefreshTokenTTL,
		"AUTH_CODE_TTL":       c.Auth.AuthCodeTTL,
		"PENDING_CONSENT_TTL": c.Auth.ConsentTTL,
	} {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if len(c.Auth.DefaultScopes) == 0 {
		errs = append(errs, errors.New("DEFAULT_SCOPES must not be empty"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
