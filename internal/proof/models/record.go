package models

import (
	"encoding/json"
	"fmt"
	"time"

	id "geoprivacy/pkg/domain"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/geo"
)

const (
	// MinVerificationRadius and MaxVerificationRadius bound the tolerance in meters.
	MinVerificationRadius = 0.0
	MaxVerificationRadius = 1000.0
)

// Location is the serialized coordinate pair kept on a record.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ParseLocation decodes the JSON location string accepted by the create
// endpoint and validates its range.
func ParseLocation(raw string) (Location, error) {
	var loc struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return Location{}, dErrors.New(dErrors.CodeValidation, "location must be a JSON object with latitude and longitude")
	}
	if loc.Latitude == nil || loc.Longitude == nil {
		return Location{}, dErrors.New(dErrors.CodeValidation, "location must include latitude and longitude")
	}
	if err := geo.ValidateCoordinates(*loc.Latitude, *loc.Longitude); err != nil {
		return Location{}, err
	}
	return Location{Latitude: *loc.Latitude, Longitude: *loc.Longitude}, nil
}

// Record is a persisted, time-bounded location proof.
type Record struct {
	ID                 id.ProofID
	Token              Token
	VerificationRadius float64
	CenterLat          float64
	CenterLon          float64
	ProofTimestamp     time.Time
	ExpirationDate     time.Time
	IsValid            bool
	UserID             id.UserID
	Location           string
	LocationHash       string
	Proof              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RecordParams carries everything NewRecord needs.
type RecordParams struct {
	Token        Token
	UserID       id.UserID
	Center       geo.Marker
	RadiusMeters float64
	IssuedAt     time.Time
	Validity     time.Duration
	Proof        string
}

// NewRecord builds a valid record or reports which invariant failed.
func NewRecord(p RecordParams) (*Record, error) {
	if _, err := ParseToken(string(p.Token)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "invalid zero-knowledge token")
	}
	if p.RadiusMeters < MinVerificationRadius || p.RadiusMeters > MaxVerificationRadius {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("verification radius must be between %g and %g meters", MinVerificationRadius, MaxVerificationRadius))
	}
	if p.IssuedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "proof timestamp is required")
	}
	if p.Validity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiration date must be after proof timestamp")
	}

	location, err := json.Marshal(Location{Latitude: p.Center.Latitude(), Longitude: p.Center.Longitude()})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode location")
	}

	return &Record{
		ID:                 id.NewProofID(),
		Token:              p.Token,
		VerificationRadius: p.RadiusMeters,
		CenterLat:          p.Center.Latitude(),
		CenterLon:          p.Center.Longitude(),
		ProofTimestamp:     p.IssuedAt,
		ExpirationDate:     p.IssuedAt.Add(p.Validity),
		IsValid:            true,
		UserID:             p.UserID,
		Location:           string(location),
		LocationHash:       p.Center.Hash(),
		Proof:              p.Proof,
	}, nil
}

// IsExpired reports whether now is past the expiration date.
func (r *Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpirationDate)
}

// CheckValidity is IsValid and not expired.
func (r *Record) CheckValidity(now time.Time) bool {
	return r.IsValid && !r.IsExpired(now)
}

// RemainingValidity is the time left before expiry; negative once expired.
func (r *Record) RemainingValidity(now time.Time) time.Duration {
	return r.ExpirationDate.Sub(now)
}

// Invalidate flips IsValid to false. The transition is one-way.
func (r *Record) Invalidate(now time.Time) {
	if r.IsValid {
		r.IsValid = false
		r.UpdatedAt = now
	}
}

// OwnedBy reports whether userID owns the record.
func (r *Record) OwnedBy(userID id.UserID) bool {
	return !r.UserID.IsNil() && r.UserID == userID
}

// Center returns the record center as a marker.
func (r *Record) Center() (geo.Marker, error) {
	return geo.NewDefaultMarker(r.CenterLat, r.CenterLon)
}

// Clone returns an independent copy so stores never hand out aliases.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
