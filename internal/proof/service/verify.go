package service

import (
	"context"

	"geoprivacy/internal/proof/backend"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/requestcontext"
)

// Verification is the outcome of checking a proof payload.
type Verification struct {
	Statement    backend.Statement
	LocationHash string
	// Fresh is true when the statement was generated within the validity
	// window and not meaningfully in the future.
	Fresh bool
}

// VerifyProof decodes payload through the backend. Any payload the backend
// rejects is reported as a validation error.
func (s *Service) VerifyProof(ctx context.Context, payload string) (*Verification, error) {
	if payload == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "proof is required")
	}
	stmt, err := s.backend.Verify(ctx, backend.Payload(payload))
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "proof could not be verified")
		}
		return nil, err
	}
	now := requestcontext.Now(ctx)
	age := now.Sub(stmt.GeneratedAt)
	return &Verification{
		Statement:    stmt,
		LocationHash: stmt.Location.Hash(),
		Fresh:        age >= -MaxClockSkew && age <= s.validity,
	}, nil
}
