package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"geoprivacy/internal/audit"
	"geoprivacy/internal/proof/backend"
	"geoprivacy/internal/proof/models"
	id "geoprivacy/pkg/domain"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/geo"
	"geoprivacy/pkg/platform/sentinel"
	"geoprivacy/pkg/requestcontext"
)

// Generate issues a proof that userID was at (lat, lon) and persists it.
// Invalid coordinates are a validation error; every later failure collapses
// into ErrGenerationFailed and leaves no record behind.
func (s *Service) Generate(ctx context.Context, userID id.UserID, lat, lon float64) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "proof.Generate")
	defer span.End()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated user is required")
	}
	marker, err := geo.NewDefaultMarker(lat, lon)
	if err != nil {
		return nil, err
	}

	record, err := s.issue(ctx, userID, marker)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		s.logger.ErrorContext(ctx, "failed to generate location proof",
			"user_id", userID.String(),
			"backend", s.backend.Name(),
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.IncrementProofGenerationFailures()
		}
		return nil, ErrGenerationFailed
	}

	span.SetAttributes(attribute.String("proof.token_prefix", record.Token.Redacted()))
	if s.metrics != nil {
		s.metrics.IncrementProofsGenerated()
	}
	s.emit(ctx, audit.Event{
		Action:       audit.ActionProofGenerated,
		UserID:       userID.String(),
		ProofToken:   record.Token.String(),
		LocationHash: record.LocationHash,
	})
	s.logger.InfoContext(ctx, "location proof generated",
		"user_id", userID.String(),
		"token", record.Token.Redacted(),
		"expires_at", record.ExpirationDate,
	)
	return record, nil
}

func (s *Service) issue(ctx context.Context, userID id.UserID, marker geo.Marker) (*models.Record, error) {
	now := requestcontext.Now(ctx)
	payload, err := s.backend.Generate(ctx, backend.Statement{
		UserID:      userID,
		Location:    marker,
		GeneratedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", s.backend.Name(), err)
	}
	return s.persist(ctx, models.RecordParams{
		UserID:       userID,
		Center:       marker,
		RadiusMeters: s.defaultRadius,
		IssuedAt:     now,
		Validity:     s.validity,
		Proof:        string(payload),
	})
}

// persist mints a token and saves the record. A token collision is retried
// with a fresh token; the insert is the last step so failures leave nothing.
func (s *Service) persist(ctx context.Context, params models.RecordParams) (*models.Record, error) {
	var lastErr error
	for range maxTokenAttempts {
		token, err := models.NewToken(params.IssuedAt)
		if err != nil {
			return nil, err
		}
		params.Token = token
		record, err := models.NewRecord(params)
		if err != nil {
			return nil, err
		}
		err = s.store.Save(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, fmt.Errorf("save location proof: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("save location proof after %d attempts: %w", maxTokenAttempts, lastErr)
}

// CreateInput is a client-submitted proof.
type CreateInput struct {
	Location  string
	Timestamp time.Time
	Proof     string
}

// Create stores a proof the client produced elsewhere. The location must be a
// JSON object with in-range latitude and longitude.
func (s *Service) Create(ctx context.Context, userID id.UserID, in CreateInput) (*models.Record, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated user is required")
	}
	loc, err := models.ParseLocation(in.Location)
	if err != nil {
		return nil, err
	}
	if in.Proof == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "proof is required")
	}
	now := requestcontext.Now(ctx)
	if in.Timestamp.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "timestamp is required")
	}
	if in.Timestamp.After(now.Add(MaxClockSkew)) {
		return nil, dErrors.New(dErrors.CodeValidation, "timestamp is in the future")
	}
	if !in.Timestamp.Add(s.validity).After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "timestamp is older than the validity window")
	}
	marker, err := geo.NewDefaultMarker(loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, err
	}

	record, err := s.persist(ctx, models.RecordParams{
		UserID:       userID,
		Center:       marker,
		RadiusMeters: s.defaultRadius,
		IssuedAt:     in.Timestamp,
		Validity:     s.validity,
		Proof:        in.Proof,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create location proof",
			"user_id", userID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save location proof")
	}

	s.emit(ctx, audit.Event{
		Action:       audit.ActionProofCreated,
		UserID:       userID.String(),
		ProofToken:   record.Token.String(),
		LocationHash: record.LocationHash,
	})
	return record, nil
}
