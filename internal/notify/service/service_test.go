package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"membership/internal/membership/models"
	"membership/internal/notify/service"
	"membership/internal/notify/service/mocks"
	"membership/internal/platform/metrics"
	id "membership/pkg/domain"
	dErrors "membership/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	ctrl    *gomock.Controller
	relay   *mocks.MockRelay
	metrics *metrics.Metrics
	service *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.relay = mocks.NewMockRelay(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	svc, err := service.New(s.relay, "membership@ukpc.example", service.BankDetails{
		AccountName:   "UKPC Ltd",
		SortCode:      "12-34-56",
		AccountNumber: "12345678",
	}, service.WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.service = svc
}

func applicant() models.Applicant {
	return models.Applicant{
		FullName:       "Jane Doe",
		Email:          "jane@example.com",
		MembershipType: id.MembershipTypeAssociate,
		MemberID:       "MEMBER#000042",
	}
}

// capture records the message passed to the relay.
func (s *ServiceSuite) capture(out *service.Message) {
	s.relay.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg service.Message) error {
		*out = msg
		return nil
	})
}

func (s *ServiceSuite) TestPaymentInstructions() {
	var msg service.Message
	s.capture(&msg)

	err := s.service.Notify(s.ctx, service.Request{Kind: service.KindPaymentInstructions, Applicant: applicant()})
	s.Require().NoError(err)

	s.Equal("membership@ukpc.example", msg.From)
	s.Equal("jane@example.com", msg.To)
	s.Equal(service.SubjectPaymentInstructions, msg.Subject)
	s.Contains(msg.HTMLBody, "Dear Jane Doe,")
	s.Contains(msg.HTMLBody, "payment of £25 ")
	s.Contains(msg.HTMLBody, "Account Name: UKPC Ltd")
	s.Contains(msg.HTMLBody, "Sort Code: 12-34-56")
	s.Contains(msg.HTMLBody, "Account Number: 12345678")
	s.Contains(msg.HTMLBody, "Reference: MEMBER#000042")
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Emails.WithLabelValues("payment_instructions", "sent")))
}

func (s *ServiceSuite) TestFullMembershipFee() {
	var msg service.Message
	s.capture(&msg)

	a := applicant()
	a.MembershipType = id.MembershipTypeFull
	s.Require().NoError(s.service.Notify(s.ctx, service.Request{Kind: service.KindPaymentInstructions, Applicant: a}))
	s.Contains(msg.HTMLBody, "payment of £50 ")
}

func (s *ServiceSuite) TestWelcome() {
	var msg service.Message
	s.capture(&msg)

	err := s.service.Notify(s.ctx, service.Request{Kind: service.KindWelcome, Applicant: applicant(), TempPassword: "Tmp-Pass-1"})
	s.Require().NoError(err)
	s.Equal(service.SubjectWelcome, msg.Subject)
	s.Contains(msg.HTMLBody, "Username: jane@example.com")
	s.Contains(msg.HTMLBody, "Temporary Password: Tmp-Pass-1")
}

func (s *ServiceSuite) TestUserInputIsEscaped() {
	var msg service.Message
	s.capture(&msg)

	a := applicant()
	a.FullName = `<script>alert("x")</script>`
	s.Require().NoError(s.service.Notify(s.ctx, service.Request{Kind: service.KindPaymentInstructions, Applicant: a}))
	s.NotContains(msg.HTMLBody, "<script>")
	s.Contains(msg.HTMLBody, "&lt;script&gt;")
}

func (s *ServiceSuite) TestRejectedRequests() {
	tests := []struct {
		name    string
		req     service.Request
		message string
	}{
		{
			name:    "unknown kind",
			req:     service.Request{Kind: "newsletter", Applicant: applicant()},
			message: "Invalid email type: newsletter",
		},
		{
			name:    "welcome without temporary password",
			req:     service.Request{Kind: service.KindWelcome, Applicant: applicant()},
			message: service.MsgMissingTempPassword,
		},
		{
			name: "payment instructions without member id",
			req: func() service.Request {
				a := applicant()
				a.MemberID = ""
				return service.Request{Kind: service.KindPaymentInstructions, Applicant: a}
			}(),
			message: "Missing required field: memberId",
		},
		{
			name: "payment instructions without email",
			req: func() service.Request {
				a := applicant()
				a.Email = ""
				return service.Request{Kind: service.KindPaymentInstructions, Applicant: a}
			}(),
			message: "Missing required field: email",
		},
		{
			name: "payment instructions with unknown tier",
			req: func() service.Request {
				a := applicant()
				a.MembershipType = "platinum"
				return service.Request{Kind: service.KindPaymentInstructions, Applicant: a}
			}(),
			message: service.MsgInvalidMembershipType,
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.service.Notify(s.ctx, tt.req)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
			s.Equal(tt.message, dErrors.MessageOf(err, ""))
		})
	}
}

func (s *ServiceSuite) TestRelayFailureIsInternal() {
	s.relay.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("MessageRejected: Email address is not verified"))

	err := s.service.Notify(s.ctx, service.Request{Kind: service.KindPaymentInstructions, Applicant: applicant()})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(service.MsgSendFailed, dErrors.MessageOf(err, ""))
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Emails.WithLabelValues("payment_instructions", "failed")))
}

func (s *ServiceSuite) TestSentMessages() {
	s.Equal(service.MsgPaymentInstructionsSent, service.KindPaymentInstructions.SentMessage())
	s.Equal(service.MsgWelcomeSent, service.KindWelcome.SentMessage())
}
