package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"geoprivacy/internal/proof/models"
	id "geoprivacy/pkg/domain"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/geo"
	"geoprivacy/pkg/platform/sentinel"
	"geoprivacy/pkg/requestcontext"
)

// ListByUser returns every proof owned by userID, newest first.
func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Record, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated user is required")
	}
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list location proofs")
	}
	return records, nil
}

// Get looks a proof up by token and reports whether it is currently valid.
func (s *Service) Get(ctx context.Context, rawToken string) (*models.Record, bool, error) {
	token, err := models.ParseToken(rawToken)
	if err != nil {
		return nil, false, err
	}
	record, err := s.store.FindByToken(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.New(dErrors.CodeNotFound, "location proof not found")
	}
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load location proof")
	}
	return record, s.isValid(ctx, record, requestcontext.Now(ctx)), nil
}

// isValid is CheckValidity plus the revocation list. A revocation lookup
// failure counts as invalid.
func (s *Service) isValid(ctx context.Context, record *models.Record, now time.Time) bool {
	if !record.CheckValidity(now) {
		return false
	}
	if s.revocations == nil {
		return true
	}
	revoked, err := s.revocations.IsRevoked(ctx, record.Token.String())
	if err != nil {
		s.logger.WarnContext(ctx, "revocation lookup failed",
			"token", record.Token.Redacted(),
			"error", err,
		)
		return false
	}
	return !revoked
}

// Nearby returns valid, unexpired proofs whose center lies within
// radiusMeters of (lat, lon).
func (s *Service) Nearby(ctx context.Context, lat, lon, radiusMeters float64) ([]*models.Record, error) {
	if err := geo.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusMeters) || radiusMeters <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "radius must be a positive number of meters")
	}
	if radiusMeters > s.maxSearchRadius {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("radius must not exceed %g meters", s.maxSearchRadius))
	}
	records, err := s.store.FindValidNearby(ctx, lat, lon, radiusMeters, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search location proofs")
	}
	return records, nil
}

// TokenStatus is the validity of one token in a batch lookup.
type TokenStatus struct {
	Token     models.Token
	Found     bool
	Valid     bool
	ExpiresAt time.Time
}

// Statuses reports validity for up to MaxStatusBatch tokens in input order.
// Duplicate tokens are answered once per occurrence.
func (s *Service) Statuses(ctx context.Context, rawTokens []string) ([]TokenStatus, error) {
	if len(rawTokens) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "tokens are required")
	}
	if len(rawTokens) > MaxStatusBatch {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("at most %d tokens may be checked at once", MaxStatusBatch))
	}

	tokens := make([]models.Token, len(rawTokens))
	unique := make([]models.Token, 0, len(rawTokens))
	seen := make(map[models.Token]struct{}, len(rawTokens))
	for i, raw := range rawTokens {
		token, err := models.ParseToken(raw)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("tokens[%d] is not a valid token", i))
		}
		tokens[i] = token
		if _, ok := seen[token]; !ok {
			seen[token] = struct{}{}
			unique = append(unique, token)
		}
	}

	records, err := s.store.ListByTokens(ctx, unique)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load location proofs")
	}
	byToken := make(map[models.Token]*models.Record, len(records))
	for _, r := range records {
		byToken[r.Token] = r
	}

	now := requestcontext.Now(ctx)
	out := make([]TokenStatus, len(tokens))
	for i, token := range tokens {
		status := TokenStatus{Token: token}
		if r, ok := byToken[token]; ok {
			status.Found = true
			status.Valid = s.isValid(ctx, r, now)
			status.ExpiresAt = r.ExpirationDate
		}
		out[i] = status
	}
	return out, nil
}
