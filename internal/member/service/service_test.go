package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"membership/internal/member/service"
	"membership/internal/member/store/memory"
	"membership/internal/membership/models"
	"membership/internal/platform/metrics"
	id "membership/pkg/domain"
	dErrors "membership/pkg/domain-errors"
	"membership/pkg/platform/events"
	eventsmemory "membership/pkg/platform/events/memory"
	"membership/pkg/platform/sentinel"
	"membership/pkg/requestcontext"
)

func noDelay() backoff.BackOff { return &backoff.ZeroBackOff{} }

func applicant(email string) models.Applicant {
	return models.Applicant{
		FullName:       "Jane Doe",
		Email:          email,
		Telephone:      "07123 456789",
		Postcode:       "SW1A 1AA",
		MembershipType: id.MembershipTypeFull,
		LAAStatus:      false,
	}
}

// scriptedTable wraps a memory table and lets tests inject a competing
// writer or a hard failure on specific attempts.
type scriptedTable struct {
	*memory.Table
	mu          sync.Mutex
	puts        int
	beforePut   func(attempt int, record models.Record) error
	latestError error
}

func (t *scriptedTable) LatestMemberID(ctx context.Context) (id.MemberID, error) {
	if t.latestError != nil {
		return "", t.latestError
	}
	return t.Table.LatestMemberID(ctx)
}

func (t *scriptedTable) PutIfAbsent(ctx context.Context, record models.Record) error {
	t.mu.Lock()
	t.puts++
	attempt := t.puts
	t.mu.Unlock()
	if t.beforePut != nil {
		if err := t.beforePut(attempt, record); err != nil {
			return err
		}
	}
	return t.Table.PutIfAbsent(ctx, record)
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	table     *memory.Table
	publisher *eventsmemory.Publisher
	metrics   *metrics.Metrics
	service   *service.Service
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.table = memory.New()
	s.publisher = eventsmemory.NewPublisher()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	s.service = s.newService(s.table)
}

func (s *ServiceSuite) newService(table service.Table, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithBackOff(noDelay),
		service.WithPublisher(s.publisher),
		service.WithMetrics(s.metrics),
		service.WithClock(func() time.Time { return s.now }),
	}
	svc, err := service.New(table, append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) TestSequentialAllocation() {
	s.Run("first member gets MEMBER#000001", func() {
		memberID, err := s.service.AllocateAndStore(s.ctx, applicant("a@example.com"))
		s.Require().NoError(err)
		s.Equal(id.MemberID("MEMBER#000001"), memberID)
	})

	s.Run("subsequent members increment by one", func() {
		for _, want := range []id.MemberID{"MEMBER#000002", "MEMBER#000003"} {
			memberID, err := s.service.AllocateAndStore(s.ctx, applicant("b@example.com"))
			s.Require().NoError(err)
			s.Equal(want, memberID)
		}
	})

	s.Run("stored record is PENDING with both keys set", func() {
		record, err := s.service.Get(s.ctx, "MEMBER#000001")
		s.Require().NoError(err)
		s.Equal("MEMBER#000001", record.PK)
		s.Equal("MEMBER#000001", record.SK)
		s.Equal(id.MembershipStatusPending, record.MembershipStatus)
		s.Equal(models.RecordTypeMember, record.RecordType)
		s.Equal("false", record.LAAStatus)
		s.Equal(s.now, record.CreatedAt)
	})

	s.Equal(float64(3), promtest.ToFloat64(s.metrics.MembersStored))
}

func (s *ServiceSuite) TestCreatedAtUsesRequestTime() {
	svc, err := service.New(s.table, service.WithBackOff(noDelay))
	s.Require().NoError(err)
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	memberID, err := svc.AllocateAndStore(requestcontext.WithTime(s.ctx, at), applicant("a@example.com"))
	s.Require().NoError(err)

	record, err := svc.Get(s.ctx, memberID.String())
	s.Require().NoError(err)
	s.Equal(at, record.CreatedAt)
}

func (s *ServiceSuite) TestPublishesMemberRegistered() {
	memberID, err := s.service.AllocateAndStore(s.ctx, applicant("a@example.com"))
	s.Require().NoError(err)

	published := s.publisher.List()
	s.Require().Len(published, 1)
	s.Equal(events.TypeMemberRegistered, published[0].Type)
	s.Equal(memberID.String(), published[0].Key)
	s.Equal(events.MemberRegistered{
		MemberID:       memberID.String(),
		Email:          "a@example.com",
		MembershipType: "full",
		Status:         "PENDING",
	}, published[0].Payload)
}

func (s *ServiceSuite) TestPublishFailureDoesNotFailStore() {
	s.publisher.Err = errors.New("broker down")

	memberID, err := s.service.AllocateAndStore(s.ctx, applicant("a@example.com"))
	s.Require().NoError(err)
	_, err = s.table.Get(s.ctx, memberID)
	s.NoError(err)
}

func (s *ServiceSuite) TestRetriesAfterLostRace() {
	table := &scriptedTable{Table: s.table}
	table.beforePut = func(attempt int, record models.Record) error {
		if attempt == 1 {
			// A competing request takes the same id first.
			competitor := models.NewRecord(record.MemberID(), applicant("rival@example.com"), s.now)
			s.Require().NoError(s.table.PutIfAbsent(s.ctx, competitor))
		}
		return nil
	}
	svc := s.newService(table)

	memberID, err := svc.AllocateAndStore(s.ctx, applicant("a@example.com"))
	s.Require().NoError(err)
	s.Equal(id.MemberID("MEMBER#000002"), memberID)

	rival, err := s.table.Get(s.ctx, "MEMBER#000001")
	s.Require().NoError(err)
	s.Equal("rival@example.com", rival.Email, "winner's record must not be overwritten")
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.AllocationConflicts))
}

// laggingIndexTable reports a latest id that trails the stored records, as a
// DynamoDB global secondary index does until it catches up.
type laggingIndexTable struct {
	*memory.Table
	latest id.MemberID
}

func (t *laggingIndexTable) LatestMemberID(context.Context) (id.MemberID, error) {
	if t.latest == "" {
		return "", sentinel.ErrNotFound
	}
	return t.latest, nil
}

func (s *ServiceSuite) TestRetriesMovePastStaleIndex() {
	for n := 1; n <= 3; n++ {
		memberID, err := id.NewMemberID(n)
		s.Require().NoError(err)
		s.Require().NoError(s.table.PutIfAbsent(s.ctx, models.NewRecord(memberID, applicant("existing@example.com"), s.now)))
	}

	s.Run("index one behind", func() {
		svc := s.newService(&laggingIndexTable{Table: s.table, latest: "MEMBER#000002"})
		memberID, err := svc.AllocateAndStore(s.ctx, applicant("a@example.com"))
		s.Require().NoError(err)
		s.Equal(id.MemberID("MEMBER#000004"), memberID)
	})

	s.Run("index empty", func() {
		svc := s.newService(&laggingIndexTable{Table: s.table}, service.WithMaxAttempts(6))
		memberID, err := svc.AllocateAndStore(s.ctx, applicant("b@example.com"))
		s.Require().NoError(err)
		s.Equal(id.MemberID("MEMBER#000005"), memberID)
	})

	s.Equal(5, s.table.Len())
}

func (s *ServiceSuite) TestExhaustedRetriesReportContention() {
	table := &scriptedTable{Table: s.table}
	table.beforePut = func(int, models.Record) error {
		return fmt.Errorf("conditional put: %w", sentinel.ErrConflict)
	}
	svc := s.newService(table, service.WithMaxAttempts(3))

	_, err := svc.AllocateAndStore(s.ctx, applicant("a@example.com"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(service.MsgContention, dErrors.MessageOf(err, ""))
	s.Equal(3, table.puts)
	s.Equal(0, s.table.Len())
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.AllocationExhausted))
	s.Empty(s.publisher.List())
}

func (s *ServiceSuite) TestStoreErrorsAreNotRetried() {
	table := &scriptedTable{Table: s.table}
	table.beforePut = func(int, models.Record) error {
		return errors.New("connection reset")
	}
	svc := s.newService(table)

	_, err := svc.AllocateAndStore(s.ctx, applicant("a@example.com"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(service.MsgStoreFailed, dErrors.MessageOf(err, ""))
	s.Equal(1, table.puts)
}

func (s *ServiceSuite) TestLatestLookupFailure() {
	table := &scriptedTable{Table: s.table, latestError: errors.New("index unavailable")}
	svc := s.newService(table)

	_, err := svc.AllocateAndStore(s.ctx, applicant("a@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(0, table.puts)
}

func (s *ServiceSuite) TestCounterSpaceExhausted() {
	last, err := id.NewMemberID(id.MaxMemberCounter)
	s.Require().NoError(err)
	s.Require().NoError(s.table.PutIfAbsent(s.ctx, models.NewRecord(last, applicant("z@example.com"), s.now)))

	_, err = s.service.AllocateAndStore(s.ctx, applicant("a@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

// TestConcurrentAllocationYieldsDistinctIDs runs many allocations at once and
// checks every request that succeeds owns a different id.
func (s *ServiceSuite) TestConcurrentAllocationYieldsDistinctIDs() {
	const requests = 40
	svc := s.newService(s.table, service.WithMaxAttempts(requests+1))

	var (
		mu  sync.Mutex
		ids = make(map[id.MemberID]string)
	)
	g, ctx := errgroup.WithContext(s.ctx)
	for i := range requests {
		email := fmt.Sprintf("member%d@example.com", i)
		g.Go(func() error {
			memberID, err := svc.AllocateAndStore(ctx, applicant(email))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if prev, dup := ids[memberID]; dup {
				return fmt.Errorf("%s issued to %s and %s", memberID, prev, email)
			}
			ids[memberID] = email
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Len(ids, requests)
	s.Equal(requests, s.table.Len())

	for memberID, email := range ids {
		record, err := s.table.Get(s.ctx, memberID)
		s.Require().NoError(err)
		s.Equal(email, record.Email)
	}
}

func (s *ServiceSuite) TestGet() {
	s.Run("malformed id is invalid input", func() {
		_, err := s.service.Get(s.ctx, "MEMBER#12")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown id is not found", func() {
		_, err := s.service.Get(s.ctx, "MEMBER#000404")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestNewRequiresTable(t *testing.T) {
	if _, err := service.New(nil); err == nil {
		t.Fatal("expected error for nil table")
	}
}
