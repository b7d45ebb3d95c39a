package e2e

import (
	"github.com/cucumber/godog"

	"geoprivacy/e2e/steps/common"
	"geoprivacy/e2e/steps/proof"
	"geoprivacy/e2e/steps/verification"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, identity, assertions)
	common.RegisterSteps(ctx, tc)

	// Register location proof lifecycle steps
	proof.RegisterSteps(ctx, tc)

	// Register public zone verification steps
	verification.RegisterSteps(ctx, tc)
}
