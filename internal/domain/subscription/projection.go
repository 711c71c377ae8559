package subscription

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/domain/catalog"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// ProjectState folds a subscription's ordered event stream into its derived
// state at asOf. The input slice must already be sorted by (EffectiveDate,
// insertion sequence); replaying the same ordered slice at the same instant
// always yields the same result, and the only time input is the explicit asOf.
//
// Events with an effective date after asOf contribute nothing to the current
// plan or phase; the nearest future active cancel is surfaced as
// CANCELLATION_PENDING so callers can distinguish a subscription on its way
// out from a plainly active one.
func ProjectState(ctx context.Context, sub *Subscription, events []*Event, asOf time.Time, cat catalog.Repository) (*ProjectedState, error) {
	if sub == nil {
		return nil, ierr.NewError("subscription is required").
			Mark(ierr.ErrValidation)
	}

	state := &ProjectedState{State: types.SubscriptionStatePending}

	for _, ev := range events {
		if !ev.IsActive() {
			continue
		}
		if ev.SubscriptionID != sub.ID {
			continue
		}

		if ev.EffectiveDate.After(asOf) {
			if state.State == types.SubscriptionStateActive &&
				ev.IsAPIEvent(types.APIEventTypeCancel) &&
				state.CancelEffectiveDate == nil {
				effective := ev.EffectiveDate
				state.State = types.SubscriptionStateCancellationPending
				state.CancelEffectiveDate = &effective
			}
			continue
		}

		if err := applyEvent(ctx, state, ev, cat); err != nil {
			return nil, err
		}
	}

	return state, nil
}

func applyEvent(ctx context.Context, state *ProjectedState, ev *Event, cat catalog.Repository) error {
	switch {
	case ev.IsCreateEquivalent(), ev.IsAPIEvent(types.APIEventTypeChange):
		plan, err := cat.GetPlan(ctx, ev.PlanName, ev.EffectiveDate)
		if err != nil {
			return err
		}
		phase, err := cat.ResolvePlanPhase(ctx, ev.PlanName, ev.PhaseName, ev.EffectiveDate)
		if err != nil {
			return err
		}
		state.Plan = plan
		state.Phase = phase
		state.PlanStartDate = ev.EffectiveDate
		state.PhaseStartDate = ev.EffectiveDate
		state.State = types.SubscriptionStateActive
		state.CancelEffectiveDate = nil

	case ev.IsAPIEvent(types.APIEventTypeCancel):
		if ev.FromTransfer {
			state.State = types.SubscriptionStateTransferred
		} else {
			state.State = types.SubscriptionStateCancelled
		}
		state.Plan = nil
		state.Phase = nil
		state.CancelEffectiveDate = nil

	case ev.IsPhase():
		// A phase rollover is meaningless before the plan started
		if state.Plan == nil {
			return nil
		}
		phase, err := cat.ResolvePlanPhase(ctx, state.Plan.Name, ev.PhaseName, ev.EffectiveDate)
		if err != nil {
			return err
		}
		state.Phase = phase
		state.PhaseStartDate = ev.EffectiveDate

	default:
		// UNCANCEL and MIGRATE_BILLING carry no projection effect; the
		// former acts by deactivating the cancel it undoes
	}
	return nil
}
