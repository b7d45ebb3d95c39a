// Package domain holds typed identifiers shared across bounded contexts.
//
// Identifiers are distinct named types over uuid.UUID so a ProofID can never be
// passed where a UserID is expected. Parse functions are the only way in from
// untrusted input and reject empty, malformed and nil values.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "geoprivacy/pkg/domain-errors"
)

type (
	UserID  uuid.UUID
	ProofID uuid.UUID
)

func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id ProofID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id UserID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ProofID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseUserID parses an authenticated subject into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseProofID parses a proof record identifier.
func ParseProofID(s string) (ProofID, error) {
	u, err := parseUUID(s, "proof ID")
	return ProofID(u), err
}

func NewUserID() UserID {
	return UserID(uuid.New())
}

// NewProofID returns a fresh random record identifier.
func NewProofID() ProofID {
	return ProofID(uuid.New())
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) != 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
