package handler

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/geo"
)

// GenerateRequest is the body of POST /api/location-proof/generate.
type GenerateRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r *GenerateRequest) Validate() error {
	if r.Latitude == nil {
		return dErrors.New(dErrors.CodeValidation, "latitude is required")
	}
	if r.Longitude == nil {
		return dErrors.New(dErrors.CodeValidation, "longitude is required")
	}
	return geo.ValidateCoordinates(*r.Latitude, *r.Longitude)
}

// CreateRequest is the body of POST /api/location-proof/create. Location is a
// JSON-encoded {"latitude","longitude"} string; timestamp is RFC 3339 or Unix
// milliseconds.
type CreateRequest struct {
	Location  string          `json:"location"`
	Timestamp json.RawMessage `json:"timestamp"`
	Proof     string          `json:"proof"`

	parsedTimestamp time.Time
}

func (r *CreateRequest) Normalize() {
	r.Location = strings.TrimSpace(r.Location)
	r.Proof = strings.TrimSpace(r.Proof)
}

func (r *CreateRequest) Validate() error {
	if r.Location == "" {
		return dErrors.New(dErrors.CodeValidation, "location is required")
	}
	if len(r.Timestamp) == 0 || string(r.Timestamp) == "null" {
		return dErrors.New(dErrors.CodeValidation, "timestamp is required")
	}
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return err
	}
	r.parsedTimestamp = ts
	if r.Proof == "" {
		return dErrors.New(dErrors.CodeValidation, "proof is required")
	}
	return nil
}

func (r *CreateRequest) ParsedTimestamp() time.Time { return r.parsedTimestamp }

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, dErrors.New(dErrors.CodeValidation, "timestamp must be an RFC 3339 date")
		}
		return ts, nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil || math.IsNaN(ms) || ms <= 0 {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "timestamp must be a date or Unix milliseconds")
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// NearbyRequest is the body of POST /api/location-proof/nearby. Radius is in meters.
type NearbyRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Radius    *float64 `json:"radius"`
}

func (r *NearbyRequest) Validate() error {
	if r.Latitude == nil {
		return dErrors.New(dErrors.CodeValidation, "latitude is required")
	}
	if r.Longitude == nil {
		return dErrors.New(dErrors.CodeValidation, "longitude is required")
	}
	if r.Radius == nil {
		return dErrors.New(dErrors.CodeValidation, "radius is required")
	}
	if *r.Radius <= 0 {
		return dErrors.New(dErrors.CodeValidation, "radius must be positive")
	}
	return geo.ValidateCoordinates(*r.Latitude, *r.Longitude)
}

type VerifyRequest struct {
	Proof string `json:"proof"`
}

func (r *VerifyRequest) Normalize() { r.Proof = strings.TrimSpace(r.Proof) }

func (r *VerifyRequest) Validate() error {
	if r.Proof == "" {
		return dErrors.New(dErrors.CodeValidation, "proof is required")
	}
	return nil
}

// StatusRequest is the body of POST /api/location-proof/status.
type StatusRequest struct {
	Tokens []string `json:"tokens"`
}

func (r *StatusRequest) Normalize() {
	for i, t := range r.Tokens {
		r.Tokens[i] = strings.ToLower(strings.TrimSpace(t))
	}
}

func (r *StatusRequest) Validate() error {
	if len(r.Tokens) == 0 {
		return dErrors.New(dErrors.CodeValidation, "tokens are required")
	}
	return nil
}
