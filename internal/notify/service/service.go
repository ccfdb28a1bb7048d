package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"membership/internal/membership/models"
	"membership/internal/platform/metrics"
	dErrors "membership/pkg/domain-errors"
)

// Kind names a transactional email.
type Kind string

const (
	KindPaymentInstructions Kind = "payment_instructions"
	KindWelcome             Kind = "welcome"
)

const (
	SubjectPaymentInstructions = "UKPC Membership - Payment Instructions"
	SubjectWelcome             = "Welcome to UKPC - Account Activated"

	MsgPaymentInstructionsSent = "Payment instructions email sent successfully"
	MsgWelcomeSent             = "Welcome email sent successfully"
	MsgMissingTempPassword     = "Missing temporary password for welcome email"
	MsgInvalidMembershipType   = "Invalid membership type"
	MsgSendFailed              = "Error sending email"
)

// SentMessage is the caller-facing confirmation for kind.
func (k Kind) SentMessage() string {
	if k == KindWelcome {
		return MsgWelcomeSent
	}
	return MsgPaymentInstructionsSent
}

var tracer = otel.Tracer("membership/notify")

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Relay

// Relay delivers a rendered message.
type Relay interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a rendered single-recipient HTML email.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// BankDetails are quoted in payment instructions.
type BankDetails struct {
	AccountName   string
	SortCode      string
	AccountNumber string
}

// Request asks for one email. TempPassword is only used by KindWelcome.
type Request struct {
	Kind         Kind
	Applicant    models.Applicant
	TempPassword string
}

type Service struct {
	relay   Relay
	from    string
	bank    BankDetails
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(relay Relay, from string, bank BankDetails, opts ...Option) (*Service, error) {
	if relay == nil {
		return nil, errors.New("email relay is required")
	}
	s := &Service{
		relay:  relay,
		from:   from,
		bank:   bank,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Notify renders and sends the requested email.
func (s *Service) Notify(ctx context.Context, req Request) error {
	ctx, span := tracer.Start(ctx, "notify.Notify", trace.WithAttributes(attribute.String("email.kind", string(req.Kind))))
	defer span.End()

	msg, err := s.compose(req)
	if err != nil {
		return err
	}

	if err := s.relay.Send(ctx, msg); err != nil {
		s.metrics.IncEmail(string(req.Kind), "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		s.logger.ErrorContext(ctx, "send email failed", "kind", req.Kind, "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, MsgSendFailed)
	}
	s.metrics.IncEmail(string(req.Kind), "sent")
	s.logger.InfoContext(ctx, "email sent", "kind", req.Kind, "member_id", req.Applicant.MemberID)
	return nil
}

func (s *Service) compose(req Request) (Message, error) {
	a := req.Applicant
	switch req.Kind {
	case KindPaymentInstructions:
		if err := requireFields(
			field{models.FieldFullName, a.FullName},
			field{models.FieldMembershipType, a.MembershipType.String()},
			field{models.FieldMemberID, a.MemberID.String()},
			field{models.FieldEmail, a.Email},
		); err != nil {
			return Message{}, err
		}
		if !a.MembershipType.IsValid() {
			return Message{}, dErrors.New(dErrors.CodeBadRequest, MsgInvalidMembershipType)
		}
		body, err := render("payment_instructions.html", paymentView{
			FullName: a.FullName,
			Fee:      formatFee(a.MembershipType),
			MemberID: a.MemberID.String(),
			Bank:     s.bank,
		})
		if err != nil {
			return Message{}, dErrors.Wrap(err, dErrors.CodeInternal, MsgSendFailed)
		}
		return Message{From: s.from, To: a.Email, Subject: SubjectPaymentInstructions, HTMLBody: body}, nil

	case KindWelcome:
		if err := requireFields(
			field{models.FieldFullName, a.FullName},
			field{models.FieldEmail, a.Email},
		); err != nil {
			return Message{}, err
		}
		if req.TempPassword == "" {
			return Message{}, dErrors.New(dErrors.CodeBadRequest, MsgMissingTempPassword)
		}
		body, err := render("welcome.html", welcomeView{
			FullName:     a.FullName,
			Email:        a.Email,
			TempPassword: req.TempPassword,
		})
		if err != nil {
			return Message{}, dErrors.Wrap(err, dErrors.CodeInternal, MsgSendFailed)
		}
		return Message{From: s.from, To: a.Email, Subject: SubjectWelcome, HTMLBody: body}, nil

	default:
		return Message{}, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Invalid email type: %s", req.Kind))
	}
}

type field struct {
	name  string
	value string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return dErrors.New(dErrors.CodeBadRequest, "Missing required field: "+f.name)
		}
	}
	return nil
}
