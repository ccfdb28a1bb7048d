package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"membership/internal/membership/models"
	"membership/internal/platform/metrics"
	dErrors "membership/pkg/domain-errors"
	"membership/pkg/platform/sentinel"
	"membership/pkg/secrets"
)

// Caller-facing messages. Provider detail never reaches the caller.
const (
	MsgCreated       = "Cognito user created successfully"
	MsgAlreadyExists = "An account with this email already exists"
	MsgCreateFailed  = "Error creating user account"
	MsgEnableFailed  = "Error enabling user account"
	MsgNotFound      = "No account exists for this email"
)

var tracer = otel.Tracer("membership/identity")

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Directory

// Directory is the external identity provider. Implementations return
// sentinel.ErrConflict when the username is taken and sentinel.ErrNotFound
// for unknown usernames.
type Directory interface {
	CreateUser(ctx context.Context, user NewUser) (username string, err error)
	DisableUser(ctx context.Context, username string) error
	EnableUser(ctx context.Context, username string) error
}

// NewUser is an identity creation request. Username is the applicant email.
type NewUser struct {
	Username          string
	Email             string
	Name              string
	MembershipType    string
	LAAStatus         string
	TemporaryPassword string
	// SuppressInvite stops the provider sending its own welcome message.
	SuppressInvite bool
}

// Service provisions identities for applicants.
type Service struct {
	directory Directory
	logger    *slog.Logger
	metrics   *metrics.Metrics
	passwords func() (string, error)
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

// WithPasswordGenerator replaces the temporary password source.
func WithPasswordGenerator(fn func() (string, error)) Option {
	return func(s *Service) {
		s.passwords = fn
	}
}

func New(directory Directory, opts ...Option) (*Service, error) {
	if directory == nil {
		return nil, errors.New("identity directory is required")
	}
	s := &Service{
		directory: directory,
		logger:    slog.New(slog.DiscardHandler),
		passwords: secrets.TemporaryPassword,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateDisabledIdentity creates the applicant's identity and immediately
// disables it until payment is confirmed. It returns the provider-issued
// username.
//
// Create and disable are two provider calls. If disabling fails the identity
// stays enabled; that case is logged at error level with the username so it
// can be disabled by hand, and the caller receives a generic failure.
func (s *Service) CreateDisabledIdentity(ctx context.Context, applicant models.Applicant) (string, error) {
	ctx, span := tracer.Start(ctx, "identity.CreateDisabledIdentity")
	defer span.End()

	password, err := s.passwords()
	if err != nil {
		s.fail(ctx, span, "generate temporary password failed", err)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, MsgCreateFailed)
	}

	username, err := s.directory.CreateUser(ctx, NewUser{
		Username:          applicant.Email,
		Email:             applicant.Email,
		Name:              applicant.FullName,
		MembershipType:    applicant.MembershipType.String(),
		LAAStatus:         applicant.LAAStatusString(),
		TemporaryPassword: password,
		SuppressInvite:    true,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncIdentity("conflict")
			span.SetAttributes(attribute.String("identity.outcome", "conflict"))
			return "", dErrors.New(dErrors.CodeConflict, MsgAlreadyExists)
		}
		s.fail(ctx, span, "create identity failed", err)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, MsgCreateFailed)
	}

	if err := s.directory.DisableUser(ctx, username); err != nil {
		s.fail(ctx, span, "disable identity failed, identity left enabled", err, "username", username)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, MsgCreateFailed)
	}

	s.metrics.IncIdentity("created")
	span.SetAttributes(attribute.String("identity.outcome", "created"))
	s.logger.InfoContext(ctx, "disabled identity created", "username", username)
	return username, nil
}

// EnableIdentity re-enables an identity once payment has been confirmed.
func (s *Service) EnableIdentity(ctx context.Context, username string) error {
	ctx, span := tracer.Start(ctx, "identity.EnableIdentity")
	defer span.End()

	if err := s.directory.EnableUser(ctx, username); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, MsgNotFound)
		}
		s.fail(ctx, span, "enable identity failed", err, "username", username)
		return dErrors.Wrap(err, dErrors.CodeInternal, MsgEnableFailed)
	}
	s.logger.InfoContext(ctx, "identity enabled", "username", username)
	return nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, msg string, err error, attrs ...any) {
	s.metrics.IncIdentity("error")
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.logger.ErrorContext(ctx, msg, append(attrs, "error", err)...)
}
