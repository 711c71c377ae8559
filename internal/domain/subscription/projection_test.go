package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/billforge/billforge/internal/domain/catalog"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/stretchr/testify/suite"
)

type ProjectionTestSuite struct {
	suite.Suite
	ctx   context.Context
	cat   catalog.Repository
	sub   *subscription.Subscription
	start time.Time
}

func TestProjection(t *testing.T) {
	suite.Run(t, new(ProjectionTestSuite))
}

func (s *ProjectionTestSuite) SetupTest() {
	s.ctx = testutil.SetupContext()
	s.cat = testutil.NewTestCatalog()
	s.start = time.Date(2013, 8, 7, 6, 0, 0, 0, time.UTC)
	s.sub = &subscription.Subscription{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		BundleID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BUNDLE),
		Category:        types.ProductCategoryBase,
		StartDate:       s.start,
		BundleStartDate: s.start,
	}
}

func (s *ProjectionTestSuite) newEvent(eventType types.SubscriptionEventType, apiType types.APIEventType, effective time.Time, planName, phaseName string) *subscription.Event {
	return subscription.NewEvent(subscription.EventParams{
		SubscriptionID: s.sub.ID,
		Type:           eventType,
		APIEventType:   apiType,
		EffectiveDate:  effective,
		PlanName:       planName,
		PhaseName:      phaseName,
	})
}

func (s *ProjectionTestSuite) initialStream() []*subscription.Event {
	return []*subscription.Event{
		s.newEvent(types.SubscriptionEventTypeAPIUser, types.APIEventTypeCreate, s.start, testutil.PlanStandardMonthly, testutil.PhaseTrial),
		s.newEvent(types.SubscriptionEventTypePhase, "", s.start.AddDate(0, 0, 30), testutil.PlanStandardMonthly, testutil.PhaseEvergreen),
	}
}

func (s *ProjectionTestSuite) TestPendingBeforeFirstEvent() {
	events := s.initialStream()

	state, err := subscription.ProjectState(s.ctx, s.sub, events, s.start.Add(-time.Hour), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStatePending, state.State)
	s.Nil(state.Plan)
	s.Nil(state.Phase)
}

func (s *ProjectionTestSuite) TestCreateEntersInitialPhase() {
	events := s.initialStream()

	state, err := subscription.ProjectState(s.ctx, s.sub, events, s.start.AddDate(0, 0, 10), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStateActive, state.State)
	s.Equal(testutil.PlanStandardMonthly, state.PlanName())
	s.Equal(testutil.PhaseTrial, state.PhaseName())
	s.True(state.PlanStartDate.Equal(s.start))
	s.True(state.PhaseStartDate.Equal(s.start))
}

func (s *ProjectionTestSuite) TestPhaseEventRollsOver() {
	events := s.initialStream()
	phaseDate := s.start.AddDate(0, 0, 30)

	state, err := subscription.ProjectState(s.ctx, s.sub, events, phaseDate.AddDate(0, 1, 0), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStateActive, state.State)
	s.Equal(testutil.PhaseEvergreen, state.PhaseName())
	s.True(state.PhaseStartDate.Equal(phaseDate))
	// The plan start is untouched by a phase rollover
	s.True(state.PlanStartDate.Equal(s.start))
}

func (s *ProjectionTestSuite) TestFutureCancelSurfacesAsPending() {
	cancelDate := s.start.AddDate(0, 2, 0)
	events := s.initialStream()
	events = append(events, s.newEvent(types.SubscriptionEventTypeAPIUser, types.APIEventTypeCancel, cancelDate, "", ""))

	state, err := subscription.ProjectState(s.ctx, s.sub, events, cancelDate.Add(-time.Hour), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStateCancellationPending, state.State)
	s.NotNil(state.CancelEffectiveDate)
	s.True(state.CancelEffectiveDate.Equal(cancelDate))
	// The plan stays effective until the cancel lands
	s.Equal(testutil.PlanStandardMonthly, state.PlanName())

	state, err = subscription.ProjectState(s.ctx, s.sub, events, cancelDate.Add(time.Hour), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStateCancelled, state.State)
	s.Nil(state.Plan)
	s.Nil(state.Phase)
	s.Nil(state.CancelEffectiveDate)
}

func (s *ProjectionTestSuite) TestTransferCancelDerivesTransferred() {
	cancelDate := s.start.AddDate(0, 1, 0)
	cancel := subscription.NewEvent(subscription.EventParams{
		SubscriptionID: s.sub.ID,
		Type:           types.SubscriptionEventTypeAPIUser,
		APIEventType:   types.APIEventTypeCancel,
		EffectiveDate:  cancelDate,
		FromTransfer:   true,
	})
	events := append(s.initialStream(), cancel)

	state, err := subscription.ProjectState(s.ctx, s.sub, events, cancelDate.Add(time.Hour), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStateTransferred, state.State)
}

func (s *ProjectionTestSuite) TestDeactivatedEventsAreSkipped() {
	events := s.initialStream()
	events[1].Deactivate()

	state, err := subscription.ProjectState(s.ctx, s.sub, events, s.start.AddDate(0, 2, 0), s.cat)
	s.NoError(err)
	s.Equal(testutil.PhaseTrial, state.PhaseName())
	s.True(state.PhaseStartDate.Equal(s.start))
}

func (s *ProjectionTestSuite) TestChangeStartsNewPlan() {
	changeDate := s.start.AddDate(0, 0, 10)
	events := s.initialStream()
	events = append(events, s.newEvent(types.SubscriptionEventTypeAPIUser, types.APIEventTypeChange, changeDate, testutil.PlanPremiumAnnual, testutil.PhaseDiscount))

	state, err := subscription.ProjectState(s.ctx, s.sub, events, changeDate.Add(time.Hour), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStateActive, state.State)
	s.Equal(testutil.PlanPremiumAnnual, state.PlanName())
	s.Equal(testutil.PhaseDiscount, state.PhaseName())
	s.True(state.PlanStartDate.Equal(changeDate))
	s.True(state.PhaseStartDate.Equal(changeDate))
}

func (s *ProjectionTestSuite) TestUncancelCarriesNoProjectionEffect() {
	events := s.initialStream()
	events = append(events, s.newEvent(types.SubscriptionEventTypeAPIUser, types.APIEventTypeUncancel, s.start.AddDate(0, 0, 5), "", ""))

	state, err := subscription.ProjectState(s.ctx, s.sub, events, s.start.AddDate(0, 0, 6), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStateActive, state.State)
	s.Equal(testutil.PhaseTrial, state.PhaseName())
}

func (s *ProjectionTestSuite) TestEventsForOtherSubscriptionsIgnored() {
	events := s.initialStream()
	stray := subscription.NewEvent(subscription.EventParams{
		SubscriptionID: "subs_someone_else",
		Type:           types.SubscriptionEventTypeAPIUser,
		APIEventType:   types.APIEventTypeCancel,
		EffectiveDate:  s.start.Add(time.Hour),
	})
	events = append(events, stray)

	state, err := subscription.ProjectState(s.ctx, s.sub, events, s.start.AddDate(0, 0, 10), s.cat)
	s.NoError(err)
	s.Equal(types.SubscriptionStateActive, state.State)
}

func (s *ProjectionTestSuite) TestReplayIsDeterministic() {
	events := s.initialStream()
	events = append(events, s.newEvent(types.SubscriptionEventTypeAPIUser, types.APIEventTypeCancel, s.start.AddDate(0, 3, 0), "", ""))
	asOf := s.start.AddDate(0, 1, 0)

	first, err := subscription.ProjectState(s.ctx, s.sub, events, asOf, s.cat)
	s.NoError(err)
	second, err := subscription.ProjectState(s.ctx, s.sub, events, asOf, s.cat)
	s.NoError(err)
	s.Equal(first, second)
}

func (s *ProjectionTestSuite) TestNilSubscriptionRejected() {
	_, err := subscription.ProjectState(s.ctx, nil, nil, s.start, s.cat)
	s.Error(err)
}
