// Package service orchestrates the location-proof lifecycle: generation,
// persistence with expiry, proximity queries and invalidation.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"geoprivacy/internal/audit"
	"geoprivacy/internal/platform/metrics"
	"geoprivacy/internal/proof/backend"
	"geoprivacy/internal/proof/models"
	id "geoprivacy/pkg/domain"
	dErrors "geoprivacy/pkg/domain-errors"
)

const (
	DefaultValidity        = time.Hour
	DefaultRadiusMeters    = 100.0
	DefaultMaxSearchRadius = 50000.0
	// MaxClockSkew bounds how far in the future a client-supplied timestamp may be.
	MaxClockSkew = 5 * time.Minute
	// MaxStatusBatch caps the tokens accepted by Statuses.
	MaxStatusBatch = 100

	maxTokenAttempts = 3
	tracerName       = "geoprivacy/proof"
)

// ErrGenerationFailed is the only error Generate reports for internal failures.
// The cause is logged, never returned.
var ErrGenerationFailed = dErrors.New(dErrors.CodeInternal, "could not generate location proof")

// Store persists proof records.
type Store interface {
	Save(ctx context.Context, record *models.Record) error
	FindByToken(ctx context.Context, token models.Token) (*models.Record, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Record, error)
	ListByTokens(ctx context.Context, tokens []models.Token) ([]*models.Record, error)
	FindValidNearby(ctx context.Context, lat, lon, radiusMeters float64, now time.Time) ([]*models.Record, error)
	Invalidate(ctx context.Context, token models.Token, now time.Time) error
	CleanExpired(ctx context.Context, now time.Time) (int, error)
}

// RevocationList remembers invalidated tokens until they expire.
type RevocationList interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store           Store
	backend         backend.Backend
	revocations     RevocationList
	auditor         AuditPublisher
	logger          *slog.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	validity        time.Duration
	defaultRadius   float64
	maxSearchRadius float64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithRevocationList(l RevocationList) Option {
	return func(s *Service) { s.revocations = l }
}

// WithValidity sets the validity window applied to new records.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithDefaultRadius sets the verification radius stamped on generated records.
func WithDefaultRadius(meters float64) Option {
	return func(s *Service) {
		if meters >= models.MinVerificationRadius && meters <= models.MaxVerificationRadius {
			s.defaultRadius = meters
		}
	}
}

func WithMaxSearchRadius(meters float64) Option {
	return func(s *Service) {
		if meters > 0 {
			s.maxSearchRadius = meters
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(store Store, proofBackend backend.Backend, opts ...Option) *Service {
	s := &Service{
		store:           store,
		backend:         proofBackend,
		logger:          slog.Default(),
		tracer:          otel.Tracer(tracerName),
		validity:        DefaultValidity,
		defaultRadius:   DefaultRadiusMeters,
		maxSearchRadius: DefaultMaxSearchRadius,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validity is the configured validity window.
func (s *Service) Validity() time.Duration { return s.validity }

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
