package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"tollgate/internal/usage"
	"tollgate/internal/usage/store"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/audit"
	"tollgate/pkg/platform/audit/publisher"
	auditmemory "tollgate/pkg/platform/audit/store/memory"
	"tollgate/pkg/requestcontext"
)

type failingSource struct{}

func (failingSource) List(context.Context, usage.Query) ([]usage.Event, error) {
	return nil, errors.New("connection refused")
}

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	audits  *auditmemory.InMemoryStore
	service *Service
	ctx     context.Context
	license domain.LicenseID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.service = NewService(s.store,
		WithLagWindow(10*time.Minute),
		WithAuditor(publisher.NewPublisher(s.audits)),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	)
	s.ctx = requestcontext.WithTime(context.Background(), base.Add(time.Hour))
	s.license = newLicense(s.T())
}

func (s *ServiceSuite) TestRunEmitsDiscrepancies() {
	good := newKey(s.T(), s.license)
	bad := newKey(s.T(), s.license)
	s.Require().NoError(s.store.Append(s.ctx, []usage.Event{
		enf(good, true, 30), enf(bad, true, 30),
	}))
	s.Require().NoError(s.store.Append(s.ctx, []usage.Event{
		con(good, true, 30), con(bad, false, 0),
	}))

	rep, err := s.service.Run(s.ctx, Request{
		From:    base,
		To:      base.Add(time.Hour),
		Budgets: map[domain.LicenseID]int64{s.license: 20},
	})
	s.Require().NoError(err)
	s.Equal(1, rep.Confirmed)
	s.Require().Len(rep.Discrepancies, 1)
	s.Equal(CauseStatusMismatch, rep.Discrepancies[0].Cause)
	s.Require().Len(rep.Overspends, 1)

	found := s.audits.ListByAction(s.ctx, audit.EventDiscrepancyDetected)
	s.Require().Len(found, 1)
	s.Equal(s.license.String(), found[0].LicenseID)
	s.Equal(string(CauseStatusMismatch), found[0].Reason)
	s.Len(s.audits.ListByAction(s.ctx, audit.EventOverspendDetected), 1)
}

func (s *ServiceSuite) TestRunIsReplayable() {
	k := newKey(s.T(), s.license)
	s.Require().NoError(s.store.Append(s.ctx, []usage.Event{enf(k, true, 30)}))

	req := Request{From: base, To: base.Add(time.Hour), LicenseID: &s.license}
	first, err := s.service.Run(s.ctx, req)
	s.Require().NoError(err)
	second, err := s.service.Run(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Require().Len(first.Discrepancies, 1)
	s.Equal(CauseMissingReport, first.Discrepancies[0].Cause)
}

func (s *ServiceSuite) TestCounterpartJustOutsideWindowStillPairs() {
	k := newKey(s.T(), s.license)
	c := con(k, true, 30)
	c.ResolvedAt = base.Add(time.Hour + time.Minute)
	s.Require().NoError(s.store.Append(s.ctx, []usage.Event{enf(k, true, 30), c}))

	ctx := requestcontext.WithTime(context.Background(), base.Add(2*time.Hour))
	rep, err := s.service.Run(ctx, Request{From: base, To: base.Add(time.Hour)})
	s.Require().NoError(err)
	s.Equal(1, rep.Confirmed)
	s.True(rep.Clean())
}

func (s *ServiceSuite) TestRunRejectsInvertedWindow() {
	_, err := s.service.Run(s.ctx, Request{From: base, To: base})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestSourceFailure() {
	svc := NewService(failingSource{})
	_, err := svc.Run(s.ctx, Request{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
