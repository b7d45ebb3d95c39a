package service

import (
	"context"
	"errors"

	"geoprivacy/internal/audit"
	"geoprivacy/internal/proof/models"
	id "geoprivacy/pkg/domain"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/platform/sentinel"
	"geoprivacy/pkg/requestcontext"
)

// Invalidate withdraws the caller's proof. Unknown and already-invalid tokens
// succeed without side effects; a proof owned by someone else is forbidden.
func (s *Service) Invalidate(ctx context.Context, userID id.UserID, rawToken string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authenticated user is required")
	}
	token, err := models.ParseToken(rawToken)
	if err != nil {
		return err
	}

	record, err := s.store.FindByToken(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load location proof")
	}
	if !record.OwnedBy(userID) {
		return dErrors.New(dErrors.CodeForbidden, "location proof belongs to another user")
	}
	if !record.IsValid {
		return nil
	}

	now := requestcontext.Now(ctx)
	if err := s.store.Invalidate(ctx, token, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to invalidate location proof")
	}

	if ttl := record.RemainingValidity(now); ttl > 0 && s.revocations != nil {
		if err := s.revocations.Revoke(ctx, token.String(), ttl); err != nil {
			// The store already holds is_valid=false; the list only speeds up reads.
			s.logger.WarnContext(ctx, "failed to record revocation",
				"token", token.Redacted(),
				"error", err,
			)
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementProofsInvalidated()
	}
	s.emit(ctx, audit.Event{
		Action:       audit.ActionProofInvalidated,
		UserID:       userID.String(),
		ProofToken:   token.String(),
		LocationHash: record.LocationHash,
	})
	return nil
}
