// Package geo provides the coordinate value object and the great-circle
// distance used for every radius comparison in the service.
package geo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	dErrors "geoprivacy/pkg/domain-errors"
)

const (
	// DefaultPrecision is the number of decimal places kept at construction.
	DefaultPrecision = 6
	// MaxPrecision bounds the rounding factor so it stays exact in float64.
	MaxPrecision = 15
)

// Marker is an immutable, validated coordinate pair rounded to a fixed
// number of decimal places.
type Marker struct {
	lat       float64
	lon       float64
	precision int
}

// NewMarker validates and rounds a coordinate pair.
func NewMarker(lat, lon float64, precision int) (Marker, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return Marker{}, err
	}
	if precision < 0 || precision > MaxPrecision {
		return Marker{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("precision must be between 0 and %d", MaxPrecision))
	}
	return Marker{
		lat:       round(lat, precision),
		lon:       round(lon, precision),
		precision: precision,
	}, nil
}

// NewDefaultMarker is NewMarker with DefaultPrecision.
func NewDefaultMarker(lat, lon float64) (Marker, error) {
	return NewMarker(lat, lon, DefaultPrecision)
}

// ValidateCoordinates rejects non-finite and out-of-range values.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return dErrors.New(dErrors.CodeValidation, "latitude must be between -90 and 90")
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return dErrors.New(dErrors.CodeValidation, "longitude must be between -180 and 180")
	}
	return nil
}

func (m Marker) Latitude() float64  { return m.lat }
func (m Marker) Longitude() float64 { return m.lon }
func (m Marker) Precision() int     { return m.precision }

// Hash is the hex SHA-256 digest of "<lat>,<lon>" over the rounded pair.
// Inputs that round to the same pair always hash identically.
func (m Marker) Hash() string {
	sum := sha256.Sum256([]byte(m.canonical()))
	return hex.EncodeToString(sum[:])
}

func (m Marker) canonical() string {
	return strconv.FormatFloat(m.lat, 'f', -1, 64) + "," + strconv.FormatFloat(m.lon, 'f', -1, 64)
}

// DistanceTo returns the haversine distance to other in kilometers.
func (m Marker) DistanceTo(other Marker) float64 {
	return HaversineMeters(m.lat, m.lon, other.lat, other.lon) / 1000
}

// Within reports whether other lies within radiusMeters of m.
func (m Marker) Within(other Marker, radiusMeters float64) bool {
	return HaversineMeters(m.lat, m.lon, other.lat, other.lon) <= radiusMeters
}

// GeoJSON returns the marker as a GeoJSON Point geometry ([lon, lat] order).
func (m Marker) GeoJSON() *geojson.Geometry {
	return geojson.NewGeometry(m.Point())
}

// Point returns the marker as an orb point.
func (m Marker) Point() orb.Point {
	return orb.Point{m.lon, m.lat}
}

// String renders the marker with cardinal directions, e.g. "📍 48.856600°N 2.352200°E".
func (m Marker) String() string {
	latDir, lonDir := "N", "E"
	if m.lat < 0 {
		latDir = "S"
	}
	if m.lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("📍 %.*f°%s %.*f°%s",
		m.precision, math.Abs(m.lat), latDir,
		m.precision, math.Abs(m.lon), lonDir)
}

// round rounds half away from zero and folds negative zero into zero so
// "-0" never reaches the hash input.
func round(v float64, precision int) float64 {
	factor := math.Pow(10, float64(precision))
	r := math.Round(v*factor) / factor
	if r == 0 {
		return 0
	}
	return r
}
