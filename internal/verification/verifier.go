// Package verification answers whether a point lies within a radius of a
// center. It keeps no state and fails closed.
package verification

import (
	"log/slog"
	"math"
	"sort"

	"geoprivacy/internal/platform/metrics"
	"geoprivacy/pkg/geo"
)

// Claim asks whether (UserLat, UserLon) is within MaxRadiusMeters of the center.
type Claim struct {
	UserLat         float64
	UserLon         float64
	CenterLat       float64
	CenterLon       float64
	MaxRadiusMeters float64
}

// Zone is a named reference area. Radius is in meters.
type Zone struct {
	Name         string
	Lat          float64
	Lon          float64
	RadiusMeters float64
}

var predefinedZones = []Zone{
	{Name: "Paris", Lat: 48.8566, Lon: 2.3522, RadiusMeters: 10000},
	{Name: "New York", Lat: 40.7128, Lon: -74.0060, RadiusMeters: 15000},
	{Name: "Tokyo", Lat: 35.6762, Lon: 139.6503, RadiusMeters: 12000},
}

type Verifier struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewVerifier(logger *slog.Logger, m *metrics.Metrics) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger, metrics: m}
}

// Verify reports whether the haversine distance is at most the radius. Any
// malformed input or internal failure yields false.
func (v *Verifier) Verify(c Claim) (verified bool) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("proximity verification panicked", "panic", r)
			verified = false
		}
		if v.metrics != nil {
			v.metrics.ObserveProximityVerification(verified)
		}
	}()

	if geo.ValidateCoordinates(c.UserLat, c.UserLon) != nil ||
		geo.ValidateCoordinates(c.CenterLat, c.CenterLon) != nil {
		return false
	}
	if math.IsNaN(c.MaxRadiusMeters) || math.IsInf(c.MaxRadiusMeters, 0) || c.MaxRadiusMeters < 0 {
		return false
	}
	return geo.HaversineMeters(c.UserLat, c.UserLon, c.CenterLat, c.CenterLon) <= c.MaxRadiusMeters
}

// Zones returns the predefined zones ordered by name.
func (v *Verifier) Zones() []Zone {
	out := make([]Zone, len(predefinedZones))
	copy(out, predefinedZones)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Zone looks a predefined zone up by name.
func (v *Verifier) Zone(name string) (Zone, bool) {
	for _, z := range predefinedZones {
		if z.Name == name {
			return z, true
		}
	}
	return Zone{}, false
}
