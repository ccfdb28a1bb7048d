package membership

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetMemberID() string
	SetMemberID(memberID string)
}

// RegisterSteps registers onboarding step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &membershipSteps{tc: tc}

	ctx.Step(`^an application:$`, steps.defineApplication)
	ctx.Step(`^the applicant uses the email "([^"]*)"$`, steps.withEmail)
	ctx.Step(`^I submit the application to "([^"]*)"$`, steps.submitTo)
	ctx.Step(`^I request a "([^"]*)" email for the application$`, steps.requestEmail)
	ctx.Step(`^I save the member id$`, steps.saveMemberID)
	ctx.Step(`^I look up the saved member$`, steps.lookupSavedMember)
}

type membershipSteps struct {
	tc          TestContext
	application map[string]interface{}
}

// defineApplication reads a two-column table of field and value. "true" and
// "false" become booleans.
func (s *membershipSteps) defineApplication(ctx context.Context, table *godog.Table) error {
	s.application = map[string]interface{}{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("application rows need a field and a value")
		}
		field, value := row.Cells[0].Value, row.Cells[1].Value
		if b, err := strconv.ParseBool(value); err == nil {
			s.application[field] = b
			continue
		}
		s.application[field] = value
	}
	return nil
}

func (s *membershipSteps) withEmail(ctx context.Context, email string) error {
	if s.application == nil {
		return fmt.Errorf("no application defined")
	}
	s.application["email"] = email
	return nil
}

func (s *membershipSteps) submitTo(ctx context.Context, path string) error {
	return s.tc.POST(path, s.application)
}

func (s *membershipSteps) requestEmail(ctx context.Context, kind string) error {
	return s.tc.POST("/membership/notifications", map[string]interface{}{
		"emailType": kind,
		"userData":  s.application,
	})
}

func (s *membershipSteps) saveMemberID(ctx context.Context) error {
	v, err := s.tc.GetResponseField("data.memberId")
	if err != nil {
		return err
	}
	memberID, ok := v.(string)
	if !ok {
		return fmt.Errorf("memberId is not a string: %v", v)
	}
	s.tc.SetMemberID(memberID)
	return nil
}

func (s *membershipSteps) lookupSavedMember(ctx context.Context) error {
	if s.tc.GetMemberID() == "" {
		return fmt.Errorf("no member id saved")
	}
	return s.tc.GET("/members/"+url.PathEscape(s.tc.GetMemberID()), nil)
}
