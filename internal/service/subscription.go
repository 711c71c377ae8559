package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/notification"
	"github.com/billforge/billforge/internal/types"
)

// SubscriptionService coordinates every change to a subscription's event
// stream. All composite operations follow the same shape: register the
// replacement events with the notification scheduler, land them in the store
// as one batch, then retire the future events they supersede. When scheduling
// fails nothing is stored and the operation reports ErrScheduling. Retirement
// runs after the batch lands because deactivation is one-way and cannot be
// compensated.
//
// The service also consumes its own notifications: when a scheduled event
// fires it re-reads the event, replays the stream, and keeps the phase
// rollover chain going.
type SubscriptionService interface {
	CreateBundle(ctx context.Context, accountID, externalKey string) (*subscription.Bundle, error)

	CreateSubscription(ctx context.Context, sub *subscription.Subscription, initialEvents []*subscription.Event) error
	RecreateSubscription(ctx context.Context, subscriptionID string, recreateEvents []*subscription.Event) error
	ChangePlan(ctx context.Context, subscriptionID string, changeEvents []*subscription.Event) error
	CancelSubscription(ctx context.Context, subscriptionID string, cancelEvent *subscription.Event) error
	CancelSubscriptions(ctx context.Context, cancelEvents []*subscription.Event) error
	UncancelSubscription(ctx context.Context, subscriptionID string, uncancelEvents []*subscription.Event) (bool, error)
	CreateNextPhaseEvent(ctx context.Context, subscriptionID string, phaseEvent *subscription.Event) error

	Migrate(ctx context.Context, data *subscription.AccountMigrationData) error
	Transfer(ctx context.Context, transferData *subscription.BundleMigrationData, cancelData []*subscription.TransferCancelData) error
	Repair(ctx context.Context, bundleID string, repairs []*subscription.SubscriptionRepairData) error

	GetSubscriptionState(ctx context.Context, subscriptionID string, asOf time.Time) (*subscription.ProjectedState, error)

	// ComputeInitialEvents builds the create event and, for a finite initial
	// phase, the pending rollover into the next phase.
	ComputeInitialEvents(ctx context.Context, sub *subscription.Subscription, planName string) ([]*subscription.Event, error)

	// ComputeNextPhaseEvent rebuilds the pending phase rollover from the
	// stream as it stands at asOf. Returns nil when the current phase never
	// ends or is the plan's last.
	ComputeNextPhaseEvent(ctx context.Context, subscriptionID string, asOf time.Time) (*subscription.Event, error)

	notification.Effectuator
}

type subscriptionService struct {
	ServiceParams
	locks keyedMutex
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

func (s *subscriptionService) CreateBundle(ctx context.Context, accountID, externalKey string) (*subscription.Bundle, error) {
	if accountID == "" {
		return nil, ierr.NewError("account id is required").
			WithHint("A bundle always belongs to an account").
			Mark(ierr.ErrValidation)
	}
	if externalKey == "" {
		return nil, ierr.NewError("external key is required").
			Mark(ierr.ErrValidation)
	}

	existing, err := s.SubRepo.GetBundlesForAccountAndKey(ctx, accountID, externalKey)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ierr.NewError("bundle with this external key already exists for account").
			WithReportableDetails(map[string]any{
				"account_id":   accountID,
				"external_key": externalKey,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	bundle := &subscription.Bundle{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BUNDLE),
		AccountID:   accountID,
		ExternalKey: externalKey,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}
	if err := s.SubRepo.CreateBundle(ctx, bundle); err != nil {
		return nil, err
	}

	s.Logger.Infow("created bundle",
		"bundle_id", bundle.ID,
		"account_id", accountID,
		"external_key", externalKey)
	return bundle, nil
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, sub *subscription.Subscription, initialEvents []*subscription.Event) error {
	if err := s.validateNewSubscription(ctx, sub, initialEvents); err != nil {
		return err
	}

	unlock := s.locks.Lock(sub.ID)
	defer unlock()

	// Events go in first: a scheduling failure must leave no subscription
	// behind, and an event batch is retractable while a subscription is not.
	if err := s.insertAndSchedule(ctx, initialEvents); err != nil {
		return err
	}
	if err := s.SubRepo.CreateSubscription(ctx, sub); err != nil {
		s.removeEvents(ctx, initialEvents)
		return err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"bundle_id", sub.BundleID,
		"category", sub.Category,
		"event_count", len(initialEvents))
	return nil
}

func (s *subscriptionService) RecreateSubscription(ctx context.Context, subscriptionID string, recreateEvents []*subscription.Event) error {
	if len(recreateEvents) == 0 {
		return ierr.NewError("recreate requires at least one event").
			Mark(ierr.ErrValidation)
	}

	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	sub, err := s.SubRepo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	state, err := s.projectAt(ctx, sub, s.Clock.Now())
	if err != nil {
		return err
	}
	if state.State != types.SubscriptionStateCancelled {
		return ierr.NewError("only a cancelled subscription can be recreated").
			WithReportableDetails(map[string]any{
				"subscription_id": subscriptionID,
				"state":           state.State,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	return s.insertAndSchedule(ctx, recreateEvents)
}

func (s *subscriptionService) ChangePlan(ctx context.Context, subscriptionID string, changeEvents []*subscription.Event) error {
	if len(changeEvents) == 0 {
		return ierr.NewError("change requires at least one event").
			Mark(ierr.ErrValidation)
	}

	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	sub, err := s.SubRepo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	now := s.Clock.Now()
	state, err := s.projectAt(ctx, sub, now)
	if err != nil {
		return err
	}

	if err := s.insertAndSchedule(ctx, changeEvents); err != nil {
		return err
	}

	// The new change supersedes any not-yet-effective change and the phase
	// rollover computed from the old plan
	newIDs := eventIDSet(changeEvents)
	if _, err := s.SubRepo.DeactivateLatestMatching(ctx, sub.ID, func(ev *subscription.Event) bool {
		_, isNew := newIDs[ev.ID]
		return ev.IsAPIEvent(types.APIEventTypeChange) && !isNew
	}, now); err != nil {
		return err
	}
	if state.Phase != nil && !state.Phase.Duration.IsUnlimited() {
		if _, err := s.SubRepo.DeactivateLatestMatching(ctx, sub.ID, func(ev *subscription.Event) bool {
			_, isNew := newIDs[ev.ID]
			return ev.IsPhase() && !isNew
		}, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, subscriptionID string, cancelEvent *subscription.Event) error {
	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	return s.cancelSubscriptionLocked(ctx, subscriptionID, cancelEvent)
}

func (s *subscriptionService) CancelSubscriptions(ctx context.Context, cancelEvents []*subscription.Event) error {
	subIDs := make([]string, 0, len(cancelEvents))
	for _, ev := range cancelEvents {
		if ev == nil || ev.SubscriptionID == "" {
			return ierr.NewError("cancel event without subscription id").
				Mark(ierr.ErrValidation)
		}
		subIDs = append(subIDs, ev.SubscriptionID)
	}

	unlock := s.locks.LockAll(subIDs)
	defer unlock()

	for _, ev := range cancelEvents {
		if err := s.cancelSubscriptionLocked(ctx, ev.SubscriptionID, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *subscriptionService) cancelSubscriptionLocked(ctx context.Context, subscriptionID string, cancelEvent *subscription.Event) error {
	if cancelEvent == nil || !cancelEvent.IsAPIEvent(types.APIEventTypeCancel) {
		return ierr.NewError("a CANCEL event is required").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	now := s.Clock.Now()
	state, err := s.projectAt(ctx, sub, now)
	if err != nil {
		return err
	}
	if state.State == types.SubscriptionStateCancelled || state.State == types.SubscriptionStateTransferred {
		return ierr.NewError("subscription is already cancelled").
			WithReportableDetails(map[string]any{
				"subscription_id": subscriptionID,
				"state":           state.State,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	// A second active cancel would survive the uncancel of the first one
	if state.State == types.SubscriptionStateCancellationPending {
		return ierr.NewError("subscription already has a pending cancellation").
			WithReportableDetails(map[string]any{
				"subscription_id":       subscriptionID,
				"cancel_effective_date": state.CancelEffectiveDate,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if err := s.insertAndSchedule(ctx, []*subscription.Event{cancelEvent}); err != nil {
		return err
	}

	// The cancel supersedes the pending phase rollover, when one exists
	return s.deactivateNextPhaseEventFromState(ctx, sub, state, now)
}

func (s *subscriptionService) UncancelSubscription(ctx context.Context, subscriptionID string, uncancelEvents []*subscription.Event) (bool, error) {
	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	if _, err := s.SubRepo.GetSubscription(ctx, subscriptionID); err != nil {
		return false, err
	}

	now := s.Clock.Now()
	pending, err := s.SubRepo.GetPendingEvents(ctx, subscriptionID, now)
	if err != nil {
		return false, err
	}
	hasPendingCancel := false
	for _, ev := range pending {
		if ev.IsAPIEvent(types.APIEventTypeCancel) {
			hasPendingCancel = true
			break
		}
	}
	if !hasPendingCancel {
		// Nothing pending to undo; the stream stays as it is
		return false, nil
	}

	if err := s.insertAndSchedule(ctx, uncancelEvents); err != nil {
		return false, err
	}

	if _, err := s.SubRepo.DeactivateLatestMatching(ctx, subscriptionID, func(ev *subscription.Event) bool {
		return ev.IsAPIEvent(types.APIEventTypeCancel)
	}, now); err != nil {
		return false, err
	}
	return true, nil
}

func (s *subscriptionService) CreateNextPhaseEvent(ctx context.Context, subscriptionID string, phaseEvent *subscription.Event) error {
	if phaseEvent == nil || !phaseEvent.IsPhase() {
		return ierr.NewError("a PHASE event is required").
			Mark(ierr.ErrValidation)
	}

	unlock := s.locks.Lock(subscriptionID)
	defer unlock()

	sub, err := s.SubRepo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	if err := s.insertAndSchedule(ctx, []*subscription.Event{phaseEvent}); err != nil {
		return err
	}

	// A subscription keeps at most one pending phase rollover
	_, err = s.SubRepo.DeactivateLatestMatching(ctx, sub.ID, func(ev *subscription.Event) bool {
		return ev.IsPhase() && ev.ID != phaseEvent.ID
	}, s.Clock.Now())
	return err
}

func (s *subscriptionService) Migrate(ctx context.Context, data *subscription.AccountMigrationData) error {
	if data == nil || data.AccountID == "" {
		return ierr.NewError("account migration data is required").
			Mark(ierr.ErrValidation)
	}

	subIDs := make([]string, 0)
	events := make([]*subscription.Event, 0)
	for _, bundleData := range data.Bundles {
		for _, subData := range bundleData.Subscriptions {
			subIDs = append(subIDs, subData.Subscription.ID)
			events = append(events, subData.InitialEvents...)
		}
	}

	unlock := s.locks.LockAll(subIDs)
	defer unlock()

	if err := s.validateMigrationAbsent(ctx, data.Bundles); err != nil {
		return err
	}

	// All events across the account go in as one retractable batch, so a
	// scheduling failure anywhere leaves nothing of the account behind
	if err := s.insertAndSchedule(ctx, events); err != nil {
		return err
	}
	if err := s.createMigratedEntities(ctx, data.Bundles); err != nil {
		s.removeEvents(ctx, events)
		return err
	}

	s.Logger.Infow("migrated account",
		"account_id", data.AccountID,
		"bundle_count", len(data.Bundles),
		"subscription_count", len(subIDs),
		"event_count", len(events))
	return nil
}

func (s *subscriptionService) Transfer(ctx context.Context, transferData *subscription.BundleMigrationData, cancelData []*subscription.TransferCancelData) error {
	if transferData == nil || transferData.Bundle == nil {
		return ierr.NewError("transfer bundle data is required").
			Mark(ierr.ErrValidation)
	}

	subIDs := make([]string, 0)
	events := make([]*subscription.Event, 0)
	for _, subData := range transferData.Subscriptions {
		subIDs = append(subIDs, subData.Subscription.ID)
		events = append(events, subData.InitialEvents...)
	}
	for _, cancel := range cancelData {
		if cancel.CancelEvent == nil || !cancel.CancelEvent.FromTransfer {
			return ierr.NewError("transfer cancel event must be marked as from transfer").
				WithReportableDetails(map[string]any{
					"subscription_id": cancel.SubscriptionID,
				}).
				Mark(ierr.ErrValidation)
		}
		subIDs = append(subIDs, cancel.SubscriptionID)
		events = append(events, cancel.CancelEvent)
	}

	unlock := s.locks.LockAll(subIDs)
	defer unlock()

	for _, cancel := range cancelData {
		if _, err := s.SubRepo.GetSubscription(ctx, cancel.SubscriptionID); err != nil {
			return err
		}
	}
	if err := s.validateMigrationAbsent(ctx, []*subscription.BundleMigrationData{transferData}); err != nil {
		return err
	}

	// Source-side cancels and destination-side streams form one batch: a
	// scheduling failure must not strand the bundle half transferred
	if err := s.insertAndSchedule(ctx, events); err != nil {
		return err
	}

	// Retiring the source's pending phase rollovers cannot be compensated,
	// so it only happens once the batch is safely in
	now := s.Clock.Now()
	for _, cancel := range cancelData {
		sub, err := s.SubRepo.GetSubscription(ctx, cancel.SubscriptionID)
		if err != nil {
			return err
		}
		if err := s.deactivateNextPhaseEvent(ctx, sub, now); err != nil {
			return err
		}
	}

	if err := s.createMigratedEntities(ctx, []*subscription.BundleMigrationData{transferData}); err != nil {
		s.removeEvents(ctx, events)
		return err
	}

	s.Logger.Infow("transferred bundle",
		"bundle_id", transferData.Bundle.ID,
		"account_id", transferData.Bundle.AccountID,
		"cancelled_source_subscriptions", len(cancelData))
	return nil
}

func (s *subscriptionService) Repair(ctx context.Context, bundleID string, repairs []*subscription.SubscriptionRepairData) error {
	if _, err := s.SubRepo.GetBundle(ctx, bundleID); err != nil {
		return err
	}

	subIDs := make([]string, 0, len(repairs))
	events := make([]*subscription.Event, 0)
	newIDs := make(map[string]struct{})
	for _, repair := range repairs {
		subIDs = append(subIDs, repair.SubscriptionID)
		for _, ev := range repair.NewEvents {
			events = append(events, ev)
			newIDs[ev.ID] = struct{}{}
		}
	}

	unlock := s.locks.LockAll(subIDs)
	defer unlock()

	for _, repair := range repairs {
		if _, err := s.SubRepo.GetSubscription(ctx, repair.SubscriptionID); err != nil {
			return err
		}
	}

	if err := s.insertAndSchedule(ctx, events); err != nil {
		return err
	}

	// Retire the residual future stream, leaving the repaired events alone.
	// Deactivation is one-way so it runs only after the batch is in.
	now := s.Clock.Now()
	notRepaired := func(ev *subscription.Event) bool {
		_, isNew := newIDs[ev.ID]
		return !isNew
	}
	for _, repair := range repairs {
		for {
			found, err := s.SubRepo.DeactivateLatestMatching(ctx, repair.SubscriptionID, notRepaired, now)
			if err != nil {
				return err
			}
			if !found {
				break
			}
		}
	}

	s.Logger.Infow("repaired bundle",
		"bundle_id", bundleID,
		"subscription_count", len(repairs),
		"event_count", len(events))
	return nil
}

func (s *subscriptionService) GetSubscriptionState(ctx context.Context, subscriptionID string, asOf time.Time) (*subscription.ProjectedState, error) {
	sub, err := s.SubRepo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.projectAt(ctx, sub, asOf)
}

func (s *subscriptionService) ComputeInitialEvents(ctx context.Context, sub *subscription.Subscription, planName string) ([]*subscription.Event, error) {
	if sub == nil {
		return nil, ierr.NewError("subscription is required").
			Mark(ierr.ErrValidation)
	}

	plan, err := s.CatalogRepo.GetPlan(ctx, planName, sub.StartDate)
	if err != nil {
		return nil, err
	}
	initial, err := plan.InitialPhase()
	if err != nil {
		return nil, err
	}

	events := []*subscription.Event{
		subscription.NewEvent(subscription.EventParams{
			SubscriptionID: sub.ID,
			Type:           types.SubscriptionEventTypeAPIUser,
			APIEventType:   types.APIEventTypeCreate,
			EffectiveDate:  sub.StartDate,
			PlanName:       plan.Name,
			PhaseName:      initial.Name,
		}),
	}

	if !initial.Duration.IsUnlimited() {
		next, err := plan.NextPhase(initial.Name)
		if err != nil {
			return nil, err
		}
		if next != nil {
			effective, err := initial.Duration.AddToDate(sub.StartDate)
			if err != nil {
				return nil, err
			}
			events = append(events, subscription.NewEvent(subscription.EventParams{
				SubscriptionID: sub.ID,
				Type:           types.SubscriptionEventTypePhase,
				EffectiveDate:  effective,
				PlanName:       plan.Name,
				PhaseName:      next.Name,
			}))
		}
	}
	return events, nil
}

func (s *subscriptionService) ComputeNextPhaseEvent(ctx context.Context, subscriptionID string, asOf time.Time) (*subscription.Event, error) {
	sub, err := s.SubRepo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	state, err := s.projectAt(ctx, sub, asOf)
	if err != nil {
		return nil, err
	}
	if state.Plan == nil || state.Phase == nil || state.Phase.Duration.IsUnlimited() {
		return nil, nil
	}

	next, err := state.Plan.NextPhase(state.Phase.Name)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}
	effective, err := state.Phase.Duration.AddToDate(state.PhaseStartDate)
	if err != nil {
		return nil, err
	}
	return subscription.NewEvent(subscription.EventParams{
		SubscriptionID: sub.ID,
		Type:           types.SubscriptionEventTypePhase,
		EffectiveDate:  effective,
		PlanName:       state.Plan.Name,
		PhaseName:      next.Name,
	}), nil
}

// EffectuateNotification handles a fired notification. The scheduler delivers
// at least once and never retracts, so the event is re-read here: a removed
// or deactivated event means the change was superseded after scheduling and
// the notification is dropped without effect.
func (s *subscriptionService) EffectuateNotification(ctx context.Context, key notification.Key, effectiveAt time.Time) error {
	ev, err := s.SubRepo.GetEventByID(ctx, key.EventID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Debugw("dropping notification for removed event",
				"event_id", key.EventID)
			return nil
		}
		return err
	}
	if !ev.IsActive() {
		s.Logger.Debugw("dropping notification for deactivated event",
			"event_id", ev.ID,
			"subscription_id", ev.SubscriptionID)
		return nil
	}

	unlock := s.locks.Lock(ev.SubscriptionID)
	defer unlock()

	sub, err := s.SubRepo.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}

	state, err := s.projectAt(ctx, sub, ev.EffectiveDate)
	if err != nil {
		return err
	}

	s.Logger.Infow("effectuated subscription event",
		"subscription_id", sub.ID,
		"event_id", ev.ID,
		"event_type", ev.Type,
		"api_event_type", ev.APIEventType,
		"state", state.State,
		"plan", state.PlanName(),
		"phase", state.PhaseName())

	return s.scheduleNextPhaseLocked(ctx, sub, state)
}

// scheduleNextPhaseLocked keeps the rollover chain alive: after an event
// takes effect, the next phase transition is computed from the replayed
// state and written as a pending PHASE event. Caller holds the lock.
func (s *subscriptionService) scheduleNextPhaseLocked(ctx context.Context, sub *subscription.Subscription, state *subscription.ProjectedState) error {
	if state.Plan == nil || state.Phase == nil || state.Phase.Duration.IsUnlimited() {
		return nil
	}

	next, err := state.Plan.NextPhase(state.Phase.Name)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	effective, err := state.Phase.Duration.AddToDate(state.PhaseStartDate)
	if err != nil {
		return err
	}
	// A cancel landing before the rollover makes it moot
	if state.CancelEffectiveDate != nil && !state.CancelEffectiveDate.After(effective) {
		return nil
	}

	now := s.Clock.Now()
	pending, err := s.SubRepo.GetPendingEvents(ctx, sub.ID, now)
	if err != nil {
		return err
	}
	for _, pe := range pending {
		if pe.IsPhase() && pe.EffectiveDate.Equal(effective) {
			// The rollover is already on the stream
			return nil
		}
	}

	rollover := subscription.NewEvent(subscription.EventParams{
		SubscriptionID: sub.ID,
		Type:           types.SubscriptionEventTypePhase,
		EffectiveDate:  effective,
		PlanName:       state.Plan.Name,
		PhaseName:      next.Name,
	})
	if err := s.insertAndSchedule(ctx, []*subscription.Event{rollover}); err != nil {
		return err
	}
	_, err = s.SubRepo.DeactivateLatestMatching(ctx, sub.ID, func(ev *subscription.Event) bool {
		return ev.IsPhase() && ev.ID != rollover.ID
	}, now)
	return err
}

// insertAndSchedule registers every event of the batch with the scheduler and
// then lands the whole batch in one store write. Registration runs first: a
// key scheduled for an event that never landed is dropped when it fires,
// whereas a stored event nobody registered would never take effect. A
// concurrent reader sees the batch complete or not at all.
func (s *subscriptionService) insertAndSchedule(ctx context.Context, events []*subscription.Event) error {
	for _, ev := range events {
		if err := s.Scheduler.Schedule(ctx, ev.EffectiveDate, notification.Key{EventID: ev.ID}); err != nil {
			return ierr.WithError(err).
				WithHint("No changes were made and the request can be retried").
				WithReportableDetails(map[string]any{
					"event_id":        ev.ID,
					"subscription_id": ev.SubscriptionID,
				}).
				Mark(ierr.ErrScheduling)
		}
	}
	return s.SubRepo.InsertEvents(ctx, events)
}

func eventIDSet(events []*subscription.Event) map[string]struct{} {
	ids := make(map[string]struct{}, len(events))
	for _, ev := range events {
		ids[ev.ID] = struct{}{}
	}
	return ids
}

func (s *subscriptionService) removeEvents(ctx context.Context, events []*subscription.Event) {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	if err := s.SubRepo.RemoveEvents(ctx, ids); err != nil {
		s.Logger.Errorw("failed to retract events during rollback",
			"event_ids", ids,
			"error", err)
	}
}

// deactivateNextPhaseEvent retires the pending phase rollover, when the
// current phase has one. A subscription sitting in an unlimited phase, or in
// no phase at all, has nothing pending and the call is a no-op.
func (s *subscriptionService) deactivateNextPhaseEvent(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	state, err := s.projectAt(ctx, sub, now)
	if err != nil {
		return err
	}
	return s.deactivateNextPhaseEventFromState(ctx, sub, state, now)
}

func (s *subscriptionService) deactivateNextPhaseEventFromState(ctx context.Context, sub *subscription.Subscription, state *subscription.ProjectedState, now time.Time) error {
	if state.Phase == nil || state.Phase.Duration.IsUnlimited() {
		return nil
	}
	_, err := s.SubRepo.DeactivateLatestMatching(ctx, sub.ID, func(ev *subscription.Event) bool {
		return ev.IsPhase()
	}, now)
	return err
}

func (s *subscriptionService) projectAt(ctx context.Context, sub *subscription.Subscription, asOf time.Time) (*subscription.ProjectedState, error) {
	events, err := s.SubRepo.GetEventsForSubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	return subscription.ProjectState(ctx, sub, events, asOf, s.CatalogRepo)
}

func (s *subscriptionService) validateNewSubscription(ctx context.Context, sub *subscription.Subscription, initialEvents []*subscription.Event) error {
	if sub == nil || sub.ID == "" {
		return ierr.NewError("subscription with id is required").
			Mark(ierr.ErrValidation)
	}
	if len(initialEvents) == 0 {
		return ierr.NewError("a subscription starts with at least one event").
			WithHint("Use ComputeInitialEvents to build the initial stream").
			Mark(ierr.ErrValidation)
	}
	if err := sub.Category.Validate(); err != nil {
		return err
	}
	for _, ev := range initialEvents {
		if ev.SubscriptionID != sub.ID {
			return ierr.NewError("initial event targets a different subscription").
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
					"event_id":        ev.ID,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	if _, err := s.SubRepo.GetBundle(ctx, sub.BundleID); err != nil {
		return err
	}

	// One BASE subscription per bundle
	if sub.Category.IsBase() {
		base, err := s.SubRepo.GetBaseSubscription(ctx, sub.BundleID)
		if err != nil && !ierr.IsNotFound(err) {
			return err
		}
		if base != nil {
			return ierr.NewError("bundle already has a base subscription").
				WithReportableDetails(map[string]any{
					"bundle_id":            sub.BundleID,
					"base_subscription_id": base.ID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	return nil
}

func (s *subscriptionService) validateMigrationAbsent(ctx context.Context, bundles []*subscription.BundleMigrationData) error {
	for _, bundleData := range bundles {
		if bundleData.Bundle == nil {
			return ierr.NewError("migration bundle is required").
				Mark(ierr.ErrValidation)
		}
		if err := s.ensureAbsent("bundle", bundleData.Bundle.ID, func() error {
			_, err := s.SubRepo.GetBundle(ctx, bundleData.Bundle.ID)
			return err
		}); err != nil {
			return err
		}
		for _, subData := range bundleData.Subscriptions {
			if subData.Subscription == nil || subData.Subscription.ID == "" {
				return ierr.NewError("migration subscription with id is required").
					Mark(ierr.ErrValidation)
			}
			if err := s.ensureAbsent("subscription", subData.Subscription.ID, func() error {
				_, err := s.SubRepo.GetSubscription(ctx, subData.Subscription.ID)
				return err
			}); err != nil {
				return err
			}
			for _, ev := range subData.InitialEvents {
				if err := s.ensureAbsent("event", ev.ID, func() error {
					_, err := s.SubRepo.GetEventByID(ctx, ev.ID)
					return err
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *subscriptionService) createMigratedEntities(ctx context.Context, bundles []*subscription.BundleMigrationData) error {
	for _, bundleData := range bundles {
		if err := s.SubRepo.CreateBundle(ctx, bundleData.Bundle); err != nil {
			return err
		}
		for _, subData := range bundleData.Subscriptions {
			if err := s.SubRepo.CreateSubscription(ctx, subData.Subscription); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *subscriptionService) ensureAbsent(kind, id string, lookup func() error) error {
	err := lookup()
	if err == nil {
		return ierr.NewError(kind + " already exists").
			WithReportableDetails(map[string]any{
				"kind": kind,
				"id":   id,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	if ierr.IsNotFound(err) {
		return nil
	}
	return err
}
