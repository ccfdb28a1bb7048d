package e2e

import (
	"github.com/cucumber/godog"

	"membership/e2e/steps/common"
	"membership/e2e/steps/membership"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Generic requests and response assertions
	common.RegisterSteps(ctx, tc)

	// Onboarding flow
	membership.RegisterSteps(ctx, tc)
}
