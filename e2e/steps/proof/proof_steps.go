package proof

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

const basePath = "/api/location-proof"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	AdminPOST(path string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	AuthenticateAs(name string)
	UserID(name string) string
	SavedToken() string
	SetSavedToken(token string)
	SavedProof() string
	SetSavedProof(proof string)
}

// RegisterSteps registers location proof lifecycle steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &proofSteps{tc: tc}

	// Issuance
	ctx.Step(`^I generate a location proof at (-?\d+(?:\.\d+)?), (-?\d+(?:\.\d+)?)$`, steps.generateProof)
	ctx.Step(`^I save the proof token$`, steps.saveProofToken)
	ctx.Step(`^"([^"]*)" has generated a location proof at (-?\d+(?:\.\d+)?), (-?\d+(?:\.\d+)?)$`, steps.userHasGeneratedProof)
	ctx.Step(`^I create a location proof at (-?\d+(?:\.\d+)?), (-?\d+(?:\.\d+)?) with proof "([^"]*)"$`, steps.createProof)

	// Queries
	ctx.Step(`^I look up the saved proof$`, steps.lookUpSavedProof)
	ctx.Step(`^I look up proof "([^"]*)"$`, steps.lookUpProof)
	ctx.Step(`^I list my location proofs$`, steps.listMyProofs)
	ctx.Step(`^I search for proofs within (\d+) meters of (-?\d+(?:\.\d+)?), (-?\d+(?:\.\d+)?)$`, steps.searchNearby)
	ctx.Step(`^I check the status of the saved proof and "([^"]*)"$`, steps.checkStatuses)
	ctx.Step(`^the saved proof should belong to "([^"]*)"$`, steps.savedProofShouldBelongTo)

	// Verification and lifecycle
	ctx.Step(`^I verify the saved proof payload$`, steps.verifySavedPayload)
	ctx.Step(`^I invalidate the saved proof$`, steps.invalidateSavedProof)
	ctx.Step(`^I trigger a cleanup sweep$`, steps.triggerCleanup)
}

type proofSteps struct {
	tc TestContext
}

func parseCoords(lat, lon string) (float64, float64, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude %q: %w", lat, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude %q: %w", lon, err)
	}
	return la, lo, nil
}

func (s *proofSteps) generateProof(ctx context.Context, lat, lon string) error {
	la, lo, err := parseCoords(lat, lon)
	if err != nil {
		return err
	}
	return s.tc.POST(basePath+"/generate", map[string]float64{"latitude": la, "longitude": lo})
}

func (s *proofSteps) saveProofToken(ctx context.Context) error {
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	proof, err := s.tc.GetResponseField("proof")
	if err != nil {
		return err
	}
	s.tc.SetSavedToken(fmt.Sprint(token))
	s.tc.SetSavedProof(fmt.Sprint(proof))
	return nil
}

func (s *proofSteps) userHasGeneratedProof(ctx context.Context, name, lat, lon string) error {
	s.tc.AuthenticateAs(name)
	if err := s.generateProof(ctx, lat, lon); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("generate returned %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return s.saveProofToken(ctx)
}

func (s *proofSteps) createProof(ctx context.Context, lat, lon, proof string) error {
	la, lo, err := parseCoords(lat, lon)
	if err != nil {
		return err
	}
	return s.tc.POST(basePath+"/create", map[string]interface{}{
		"location":  fmt.Sprintf(`{"latitude":%g,"longitude":%g}`, la, lo),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"proof":     proof,
	})
}

func (s *proofSteps) lookUpSavedProof(ctx context.Context) error {
	return s.tc.GET(basePath+"/"+s.tc.SavedToken(), nil)
}

func (s *proofSteps) lookUpProof(ctx context.Context, token string) error {
	return s.tc.GET(basePath+"/"+token, nil)
}

func (s *proofSteps) listMyProofs(ctx context.Context) error {
	return s.tc.GET(basePath+"/user", nil)
}

func (s *proofSteps) searchNearby(ctx context.Context, radius int, lat, lon string) error {
	la, lo, err := parseCoords(lat, lon)
	if err != nil {
		return err
	}
	return s.tc.POST(basePath+"/nearby", map[string]float64{
		"latitude":  la,
		"longitude": lo,
		"radius":    float64(radius),
	})
}

func (s *proofSteps) checkStatuses(ctx context.Context, other string) error {
	return s.tc.POST(basePath+"/status", map[string][]string{
		"tokens": {s.tc.SavedToken(), other},
	})
}

func (s *proofSteps) savedProofShouldBelongTo(ctx context.Context, name string) error {
	owner, err := s.tc.GetResponseField("proof.user_id")
	if err != nil {
		return err
	}
	if want := s.tc.UserID(name); fmt.Sprint(owner) != want {
		return fmt.Errorf("expected owner %s, got %v", want, owner)
	}
	return nil
}

func (s *proofSteps) verifySavedPayload(ctx context.Context) error {
	return s.tc.POST(basePath+"/verify", map[string]string{"proof": s.tc.SavedProof()})
}

func (s *proofSteps) invalidateSavedProof(ctx context.Context) error {
	return s.tc.POST(basePath+"/"+s.tc.SavedToken()+"/invalidate", nil)
}

func (s *proofSteps) triggerCleanup(ctx context.Context) error {
	return s.tc.AdminPOST("/admin/proofs/cleanup")
}
