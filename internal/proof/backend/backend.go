// Package backend defines the pluggable proof capability. The service depends
// only on Backend, so a real zero-knowledge prover can replace the plaintext
// implementation without touching generation or persistence.
package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	id "geoprivacy/pkg/domain"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/geo"
)

// Statement is what a proof attests to.
type Statement struct {
	UserID      id.UserID
	Location    geo.Marker
	GeneratedAt time.Time
}

// Payload is an opaque, URL-safe proof artifact.
type Payload string

// Backend produces and checks proof payloads.
type Backend interface {
	Name() string
	Generate(ctx context.Context, stmt Statement) (Payload, error)
	Verify(ctx context.Context, payload Payload) (Statement, error)
}

// PlaintextBackend encodes the statement as base64url JSON.
//
// Privacy gap: the payload embeds the user ID and rounded coordinates in
// cleartext. Anyone holding the payload can decode the location. It exists so
// the lifecycle can run end to end until a real prover is plugged in.
type PlaintextBackend struct{}

func NewPlaintextBackend() *PlaintextBackend {
	return &PlaintextBackend{}
}

type plaintextStatement struct {
	UserID    string          `json:"userId"`
	Location  plaintextCoords `json:"location"`
	Timestamp time.Time       `json:"timestamp"`
}

type plaintextCoords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (b *PlaintextBackend) Name() string { return "plaintext" }

// Generate is deterministic for equal statements.
func (b *PlaintextBackend) Generate(_ context.Context, stmt Statement) (Payload, error) {
	raw, err := json.Marshal(plaintextStatement{
		UserID: stmt.UserID.String(),
		Location: plaintextCoords{
			Latitude:  stmt.Location.Latitude(),
			Longitude: stmt.Location.Longitude(),
		},
		Timestamp: stmt.GeneratedAt.UTC(),
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode proof statement")
	}
	return Payload(base64.RawURLEncoding.EncodeToString(raw)), nil
}

// Verify decodes a payload and checks every field is present and in range.
func (b *PlaintextBackend) Verify(_ context.Context, payload Payload) (Statement, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(payload))
	if err != nil {
		return Statement{}, dErrors.New(dErrors.CodeValidation, "proof is not valid base64url")
	}
	var decoded plaintextStatement
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Statement{}, dErrors.New(dErrors.CodeValidation, "proof payload is malformed")
	}
	userID, err := id.ParseUserID(decoded.UserID)
	if err != nil {
		return Statement{}, dErrors.Wrap(err, dErrors.CodeValidation, "proof payload has no valid user")
	}
	if decoded.Timestamp.IsZero() {
		return Statement{}, dErrors.New(dErrors.CodeValidation, "proof payload has no timestamp")
	}
	marker, err := geo.NewDefaultMarker(decoded.Location.Latitude, decoded.Location.Longitude)
	if err != nil {
		return Statement{}, err
	}
	return Statement{UserID: userID, Location: marker, GeneratedAt: decoded.Timestamp}, nil
}
