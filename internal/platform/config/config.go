package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAddr               = ":8080"
	DefaultProofValidity      = 3600 * time.Second
	DefaultCleanupInterval    = time.Hour
	DefaultVerificationRadius = 100.0
	MaxVerificationRadius     = 1000.0
	DefaultMaxSearchRadius    = 50000.0
	DefaultAuditTopic         = "location-proof-audit"
	DefaultJWTIssuer          = "geoprivacy"
	DefaultJWTAudience        = "geoprivacy-api"
	devJWTSigningKey          = "dev-secret-key-change-in-production"
	defaultRedisPoolSize      = 10
	defaultRedisMinIdleConns  = 2
	defaultRedisDialTimeout   = 5 * time.Second
	defaultRedisIOTimeout     = 3 * time.Second
	DefaultRateLimitWindow    = time.Minute
	DefaultProofRateLimit     = 60
	DefaultPublicRateLimit    = 120
)

// Server captures process level configuration.
type Server struct {
	Addr       string
	LogLevel   slog.Level
	AdminToken string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	Proof       ProofConfig
	RateLimit   RateLimitConfig
}

// RedisConfig drives the invalidation list backend. Empty URL selects the
// in-memory list.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig drives the audit sink. No brokers selects the in-memory sink.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// ProofConfig holds the proof lifecycle knobs.
type ProofConfig struct {
	Validity              time.Duration
	CleanupInterval       time.Duration
	DefaultRadiusMeters   float64
	MaxSearchRadiusMeters float64
}

// RateLimitConfig sets per-window request limits. Limits are shared across
// instances when Redis is configured.
type RateLimitConfig struct {
	Disabled       bool
	Window         time.Duration
	ProofRequests  int
	PublicRequests int
}

// LoadDotEnv loads .env and .env.local when present. Variables already set in
// the process environment win.
func LoadDotEnv(logger *slog.Logger) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logger.Warn("failed to load env file", "file", file, "error", err)
			continue
		}
		logger.Debug("loaded env file", "file", file)
	}
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Unparseable values fall back to their defaults.
func FromEnv() Server {
	return Server{
		Addr:       getEnv("GEOPRIVACY_ADDR", DefaultAddr),
		LogLevel:   parseLogLevel(os.Getenv("LOG_LEVEL")),
		AdminToken: os.Getenv("ADMIN_API_TOKEN"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", defaultRedisPoolSize),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", defaultRedisMinIdleConns),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", defaultRedisDialTimeout),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", defaultRedisIOTimeout),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", defaultRedisIOTimeout),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", DefaultAuditTopic),
		},
		Auth: AuthConfig{
			// Development default; production deployments must override it.
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", devJWTSigningKey),
			Issuer:        getEnv("JWT_ISSUER", DefaultJWTIssuer),
			Audience:      getEnv("JWT_AUDIENCE", DefaultJWTAudience),
		},
		Proof: ProofConfig{
			Validity:              time.Duration(getEnvInt("PROOF_EXPIRATION_TIME", int(DefaultProofValidity/time.Second))) * time.Second,
			CleanupInterval:       getEnvDuration("PROOF_CLEANUP_INTERVAL", DefaultCleanupInterval),
			DefaultRadiusMeters:   getEnvFloat("PROOF_DEFAULT_RADIUS_METERS", DefaultVerificationRadius),
			MaxSearchRadiusMeters: getEnvFloat("PROOF_MAX_SEARCH_RADIUS_METERS", DefaultMaxSearchRadius),
		},
		RateLimit: RateLimitConfig{
			Disabled:       getEnvBool("RATE_LIMIT_DISABLED", false),
			Window:         getEnvDuration("RATE_LIMIT_WINDOW", DefaultRateLimitWindow),
			ProofRequests:  getEnvInt("RATE_LIMIT_PROOF_REQUESTS", DefaultProofRateLimit),
			PublicRequests: getEnvInt("RATE_LIMIT_PUBLIC_REQUESTS", DefaultPublicRateLimit),
		},
	}
}

// Validate rejects settings the proof lifecycle cannot run with.
func (s Server) Validate() error {
	var errs []error
	if s.Proof.Validity <= 0 {
		errs = append(errs, errors.New("PROOF_EXPIRATION_TIME must be positive"))
	}
	if s.Proof.CleanupInterval <= 0 {
		errs = append(errs, errors.New("PROOF_CLEANUP_INTERVAL must be positive"))
	}
	if s.Proof.DefaultRadiusMeters < 0 || s.Proof.DefaultRadiusMeters > MaxVerificationRadius {
		errs = append(errs, fmt.Errorf("PROOF_DEFAULT_RADIUS_METERS must be within 0..%g", MaxVerificationRadius))
	}
	if s.Proof.MaxSearchRadiusMeters <= 0 {
		errs = append(errs, errors.New("PROOF_MAX_SEARCH_RADIUS_METERS must be positive"))
	}
	if !s.RateLimit.Disabled && s.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if s.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	return errors.Join(errs...)
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (s Server) UsesDevSigningKey() bool {
	return s.Auth.JWTSigningKey == devJWTSigningKey
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "2h") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func parseLogLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
