package verification

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers public zone verification steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^I list the predefined zones$`, steps.listZones)
	ctx.Step(`^zone "([^"]*)" should have a radius of (\d+) meters$`, steps.zoneShouldHaveRadius)
	ctx.Step(`^I verify that (-?\d+(?:\.\d+)?), (-?\d+(?:\.\d+)?) is within (\d+) meters of (-?\d+(?:\.\d+)?), (-?\d+(?:\.\d+)?)$`, steps.verifyLocation)
	ctx.Step(`^I verify a location without a radius$`, steps.verifyWithoutRadius)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) listZones(ctx context.Context) error {
	return s.tc.GET("/zones", nil)
}

func (s *verificationSteps) zoneShouldHaveRadius(ctx context.Context, zone string, radius int) error {
	value, err := s.tc.GetResponseField(zone + ".radius")
	if err != nil {
		return err
	}
	got, ok := value.(float64)
	if !ok || int(got) != radius {
		return fmt.Errorf("expected %s radius %d, got %v", zone, radius, value)
	}
	return nil
}

func (s *verificationSteps) verifyLocation(ctx context.Context, userLat, userLon string, radius int, centerLat, centerLon string) error {
	coords := make([]float64, 0, 4)
	for _, raw := range []string{userLat, userLon, centerLat, centerLon} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", raw, err)
		}
		coords = append(coords, v)
	}
	return s.tc.POST("/verify-location", map[string]float64{
		"userLat":   coords[0],
		"userLon":   coords[1],
		"centerLat": coords[2],
		"centerLon": coords[3],
		"maxRadius": float64(radius),
	})
}

func (s *verificationSteps) verifyWithoutRadius(ctx context.Context) error {
	return s.tc.POST("/verify-location", map[string]float64{
		"userLat":   48.8566,
		"userLon":   2.3522,
		"centerLat": 48.8566,
		"centerLon": 2.3522,
	})
}
