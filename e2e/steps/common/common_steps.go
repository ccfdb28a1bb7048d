package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTRaw(path, body string) error
	GET(path string, headers map[string]string) error
	GetStatusCode() int
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the membership service is running$`, steps.serviceIsRunning)
	ctx.Step(`^I POST the raw body "([^"]*)" to "([^"]*)"$`, steps.postRaw)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response should be successful$`, steps.shouldSucceed)
	ctx.Step(`^the response should not be successful$`, steps.shouldFail)
	ctx.Step(`^the response message should be "([^"]*)"$`, steps.messageShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/healthz", nil); err != nil {
		return err
	}
	return s.statusShouldBe(ctx, 200)
}

func (s *commonSteps) postRaw(ctx context.Context, body, path string) error {
	return s.tc.POSTRaw(path, body)
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.GetStatusCode(); got != want {
		return fmt.Errorf("expected status %d, got %d", want, got)
	}
	return nil
}

func (s *commonSteps) shouldSucceed(ctx context.Context) error {
	return s.successShouldBe(true)
}

func (s *commonSteps) shouldFail(ctx context.Context) error {
	return s.successShouldBe(false)
}

func (s *commonSteps) successShouldBe(want bool) error {
	v, err := s.tc.GetResponseField("success")
	if err != nil {
		return err
	}
	if v != want {
		return fmt.Errorf("expected success=%v, got %v", want, v)
	}
	return nil
}

func (s *commonSteps) messageShouldBe(ctx context.Context, want string) error {
	return s.fieldShouldBe(ctx, "message", want)
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}
