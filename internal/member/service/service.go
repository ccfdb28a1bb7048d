package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"membership/internal/membership/models"
	"membership/internal/platform/metrics"
	id "membership/pkg/domain"
	dErrors "membership/pkg/domain-errors"
	"membership/pkg/platform/events"
	"membership/pkg/platform/sentinel"
	"membership/pkg/requestcontext"
)

const (
	MsgStored          = "Member data stored successfully"
	MsgStoreFailed     = "Error storing member data"
	MsgContention      = "Member ID allocation contention, please retry"
	MsgMemberNotFound  = "Member not found"
	MsgLookupFailed    = "Error reading member data"
	DefaultMaxAttempts = 5
)

var tracer = otel.Tracer("membership/member")

// Table persists membership records.
//
// LatestMemberID returns the highest allocated id, or sentinel.ErrNotFound
// when no record exists. PutIfAbsent must be a conditional write that fails
// with sentinel.ErrConflict when the key is taken; it must never overwrite.
type Table interface {
	LatestMemberID(ctx context.Context) (id.MemberID, error)
	PutIfAbsent(ctx context.Context, record models.Record) error
	Get(ctx context.Context, memberID id.MemberID) (models.Record, error)
}

// Service allocates sequential member ids and stores membership records.
type Service struct {
	table       Table
	publisher   events.Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	newBackOff  func() backoff.BackOff
	now         func() time.Time
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

// WithPublisher sets where member.registered events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMaxAttempts bounds allocation attempts per request.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackOff sets the delay policy between allocation attempts. The factory
// is called once per request.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *Service) {
		s.newBackOff = fn
	}
}

// WithClock overrides the request-scoped time used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(table Table, opts ...Option) (*Service, error) {
	if table == nil {
		return nil, errors.New("member table is required")
	}
	s := &Service{
		table:       table,
		publisher:   events.Nop{},
		logger:      slog.New(slog.DiscardHandler),
		maxAttempts: DefaultMaxAttempts,
		newBackOff:  defaultBackOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 400 * time.Millisecond
	b.RandomizationFactor = 0.5
	return b
}

// AllocateAndStore assigns the next member id to applicant and stores a
// PENDING record under it.
//
// The write is conditional on the id being unused. When a concurrent request
// takes the id first the allocation is retried with backoff, up to the
// configured number of attempts. Ids lost to a failed attempt are not reused,
// so the sequence may have gaps.
func (s *Service) AllocateAndStore(ctx context.Context, applicant models.Applicant) (id.MemberID, error) {
	ctx, span := tracer.Start(ctx, "member.AllocateAndStore")
	defer span.End()
	defer s.metrics.ObserveAllocation(time.Now())

	attempt := 0
	var taken id.MemberID
	record, err := backoff.Retry(ctx, func() (models.Record, error) {
		attempt++
		next, err := s.nextMemberID(ctx, taken)
		if err != nil {
			return models.Record{}, backoff.Permanent(err)
		}
		record := models.NewRecord(next, applicant, s.clock(ctx))
		err = s.table.PutIfAbsent(ctx, record)
		switch {
		case err == nil:
			return record, nil
		case errors.Is(err, sentinel.ErrConflict):
			taken = next
			s.metrics.IncAllocationConflict()
			s.logger.DebugContext(ctx, "member id already taken", "member_id", next, "attempt", attempt)
			return models.Record{}, err
		default:
			return models.Record{}, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.maxAttempts)),
	)
	span.SetAttributes(attribute.Int("member.allocation_attempts", attempt))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation failed")
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			s.metrics.IncAllocationExhausted()
			s.logger.WarnContext(ctx, "member id allocation exhausted", "attempts", attempt)
			return "", dErrors.Wrap(err, dErrors.CodeUnavailable, MsgContention)
		case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
			s.logger.ErrorContext(ctx, "member id space exhausted", "error", err)
			return "", dErrors.Wrap(err, dErrors.CodeInvariantViolation, MsgStoreFailed)
		default:
			s.logger.ErrorContext(ctx, "store member failed", "error", err, "attempts", attempt)
			return "", dErrors.Wrap(err, dErrors.CodeInternal, MsgStoreFailed)
		}
	}

	memberID := record.MemberID()
	s.metrics.IncMembersStored()
	span.SetAttributes(attribute.String("member.id", memberID.String()))
	s.logger.InfoContext(ctx, "member stored", "member_id", memberID, "attempts", attempt)
	s.publishRegistered(ctx, record)
	return memberID, nil
}

// nextMemberID follows the higher of the indexed latest id and the id this
// request last lost. The index may trail the table, so a retry must never
// pick an id at or below one already known to be taken.
func (s *Service) nextMemberID(ctx context.Context, taken id.MemberID) (id.MemberID, error) {
	latest, err := s.table.LatestMemberID(ctx)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		latest = ""
	case err != nil:
		return "", err
	}
	if taken != "" && (latest == "" || taken.Counter() > latest.Counter()) {
		latest = taken
	}
	if latest == "" {
		return id.FirstMemberID, nil
	}
	return latest.Next()
}

// publishRegistered never fails the request; the record is already durable.
func (s *Service) publishRegistered(ctx context.Context, record models.Record) {
	event := events.NewMemberRegistered(events.MemberRegistered{
		MemberID:       record.PK,
		Email:          record.Email,
		MembershipType: record.MembershipType,
		Status:         string(record.MembershipStatus),
	}, s.clock(ctx))
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "publish member registered failed", "member_id", record.PK, "error", err)
	}
}

func (s *Service) clock(ctx context.Context) time.Time {
	if s.now != nil {
		return s.now()
	}
	return requestcontext.Now(ctx)
}

// Get returns the stored record for memberID.
func (s *Service) Get(ctx context.Context, raw string) (models.Record, error) {
	ctx, span := tracer.Start(ctx, "member.Get")
	defer span.End()

	memberID, err := id.ParseMemberID(raw)
	if err != nil {
		return models.Record{}, err
	}
	record, err := s.table.Get(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Record{}, dErrors.New(dErrors.CodeNotFound, MsgMemberNotFound)
		}
		s.logger.ErrorContext(ctx, "get member failed", "member_id", memberID, "error", err)
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, MsgLookupFailed)
	}
	return record, nil
}
