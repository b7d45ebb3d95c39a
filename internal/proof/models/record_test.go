package models

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "geoprivacy/pkg/domain"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/geo"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func paris(t *testing.T) geo.Marker {
	t.Helper()
	m, err := geo.NewDefaultMarker(48.8566, 2.3522)
	require.NoError(t, err)
	return m
}

func validParams(t *testing.T, issued time.Time) RecordParams {
	t.Helper()
	token, err := NewToken(issued)
	require.NoError(t, err)
	return RecordParams{
		Token:        token,
		UserID:       id.UserID(uuid.New()),
		Center:       paris(t),
		RadiusMeters: 100,
		IssuedAt:     issued,
		Validity:     time.Hour,
		Proof:        "payload",
	}
}

func TestNewToken(t *testing.T) {
	now := time.Now()
	seen := make(map[Token]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token, err := NewToken(now.Add(time.Duration(i) * time.Millisecond))
		require.NoError(t, err)
		require.Regexp(t, hex64, string(token))
		_, dup := seen[token]
		require.False(t, dup, "duplicate token after %d generations", i)
		seen[token] = struct{}{}
	}
}

func TestParseToken(t *testing.T) {
	good := "a3f1c2d4e5b60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	token, err := ParseToken(good)
	require.NoError(t, err)
	assert.Equal(t, Token(good), token)
	assert.Equal(t, "a3f1c2d4…", token.Redacted())

	for _, bad := range []string{"", "abc", good[:63] + "G", "A3F1C2D4E5B60718293A4B5C6D7E8F90A1B2C3D4E5F60718293A4B5C6D7E8F90", good + "0"} {
		_, err := ParseToken(bad)
		require.Error(t, err, bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}
}

func TestNewRecord(t *testing.T) {
	issued := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("expiration is issue time plus window", func(t *testing.T) {
		rec, err := NewRecord(validParams(t, issued))
		require.NoError(t, err)
		assert.Equal(t, issued.Add(time.Hour), rec.ExpirationDate)
		assert.True(t, rec.ExpirationDate.After(rec.ProofTimestamp))
		assert.True(t, rec.IsValid)
		assert.False(t, rec.ID.IsNil())
		assert.Equal(t, paris(t).Hash(), rec.LocationHash)

		var loc Location
		require.NoError(t, json.Unmarshal([]byte(rec.Location), &loc))
		assert.Equal(t, Location{Latitude: 48.8566, Longitude: 2.3522}, loc)
	})

	t.Run("radius bounds", func(t *testing.T) {
		for _, radius := range []float64{-1, 1000.5} {
			p := validParams(t, issued)
			p.RadiusMeters = radius
			_, err := NewRecord(p)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		}
		for _, radius := range []float64{0, 1000} {
			p := validParams(t, issued)
			p.RadiusMeters = radius
			_, err := NewRecord(p)
			require.NoError(t, err)
		}
	})

	t.Run("non-positive window", func(t *testing.T) {
		p := validParams(t, issued)
		p.Validity = 0
		_, err := NewRecord(p)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("malformed token", func(t *testing.T) {
		p := validParams(t, issued)
		p.Token = "short"
		_, err := NewRecord(p)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestValidityLifecycle(t *testing.T) {
	issued := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec, err := NewRecord(validParams(t, issued))
	require.NoError(t, err)

	before := issued.Add(30 * time.Minute)
	atExpiry := issued.Add(time.Hour)
	after := atExpiry.Add(time.Nanosecond)

	assert.False(t, rec.IsExpired(before))
	assert.False(t, rec.IsExpired(atExpiry), "expiry is strict: now > expirationDate")
	assert.True(t, rec.IsExpired(after))

	assert.True(t, rec.CheckValidity(before))
	assert.False(t, rec.CheckValidity(after))
	assert.Equal(t, 30*time.Minute, rec.RemainingValidity(before))
	assert.Negative(t, rec.RemainingValidity(after))

	rec.Invalidate(before)
	assert.False(t, rec.CheckValidity(before))
	assert.Equal(t, before, rec.UpdatedAt)

	rec.Invalidate(after)
	assert.False(t, rec.IsValid)
	assert.Equal(t, before, rec.UpdatedAt, "second invalidation is a no-op")
}

func TestOwnershipAndClone(t *testing.T) {
	rec, err := NewRecord(validParams(t, time.Now()))
	require.NoError(t, err)

	assert.True(t, rec.OwnedBy(rec.UserID))
	assert.False(t, rec.OwnedBy(id.UserID(uuid.New())))

	anonymous := rec.Clone()
	anonymous.UserID = id.UserID{}
	assert.False(t, anonymous.OwnedBy(id.UserID{}))

	clone := rec.Clone()
	clone.IsValid = false
	assert.True(t, rec.IsValid)
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation(`{"latitude":48.8566,"longitude":2.3522}`)
	require.NoError(t, err)
	assert.Equal(t, 48.8566, loc.Latitude)

	for _, raw := range []string{"", "Paris", `{"latitude":48.8}`, `{"latitude":95,"longitude":0}`, `[1,2]`} {
		_, err := ParseLocation(raw)
		require.Error(t, err, raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	}
}
