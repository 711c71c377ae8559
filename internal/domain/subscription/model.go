package subscription

import (
	"time"

	"github.com/billforge/billforge/internal/domain/catalog"
	"github.com/billforge/billforge/internal/types"
)

// Bundle groups the subscriptions an account purchased together. A bundle
// holds at most one BASE category subscription.
type Bundle struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	ExternalKey string `json:"external_key"`

	types.BaseModel
}

// Subscription is a projection: its identity and builder-derived fields are
// stored, but its current plan, phase and state are always recomputed by
// replaying its active events up to an instant. The event stream is the
// source of truth, never this struct.
type Subscription struct {
	ID              string                `json:"id"`
	BundleID        string                `json:"bundle_id"`
	Category        types.ProductCategory `json:"category"`
	StartDate       time.Time             `json:"start_date"`
	BundleStartDate time.Time             `json:"bundle_start_date"`

	types.BaseModel
}

// ProjectedState is the derived current state of a subscription at an instant
type ProjectedState struct {
	State types.SubscriptionState
	Plan  *catalog.Plan
	Phase *catalog.PlanPhase

	// PlanStartDate and PhaseStartDate are the effective dates of the events
	// that established the current plan and phase; the next phase rollover is
	// anchored on PhaseStartDate.
	PlanStartDate  time.Time
	PhaseStartDate time.Time

	// CancelEffectiveDate is set when a future cancel is pending
	CancelEffectiveDate *time.Time
}

// PlanName returns the current plan name, empty when not yet effective
func (p *ProjectedState) PlanName() string {
	if p.Plan == nil {
		return ""
	}
	return p.Plan.Name
}

// PhaseName returns the current phase name, empty when not yet effective
func (p *ProjectedState) PhaseName() string {
	if p.Phase == nil {
		return ""
	}
	return p.Phase.Name
}
