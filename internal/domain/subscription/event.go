package subscription

import (
	"time"

	"github.com/billforge/billforge/internal/types"
)

// Event is one immutable fact in a subscription's event stream. Events are
// never updated or deleted once inserted; the only mutation ever applied is
// Deactivate, which is one-way. A deactivated event is skipped by replay but
// kept in the store as history.
//
// The total order over a subscription's events is (EffectiveDate, insertion
// sequence); the sequence is assigned by the store on insert so that ties on
// the effective date replay deterministically.
type Event struct {
	ID             string
	SubscriptionID string
	Type           types.SubscriptionEventType
	APIEventType   types.APIEventType
	EffectiveDate  time.Time
	CreatedAt      time.Time

	// PlanName and PhaseName carry the replay payload: the plan a
	// create/change event starts and the phase the subscription enters.
	PlanName  string
	PhaseName string

	// FromTransfer marks a cancel written on the source account of a
	// transfer; replay derives TRANSFERRED instead of CANCELLED from it.
	FromTransfer bool

	active bool
}

// EventParams is the input to NewEvent
type EventParams struct {
	ID             string
	SubscriptionID string
	Type           types.SubscriptionEventType
	APIEventType   types.APIEventType
	EffectiveDate  time.Time
	CreatedAt      time.Time
	PlanName       string
	PhaseName      string
	FromTransfer   bool
}

// NewEvent builds an active event. The ID is generated when empty.
func NewEvent(p EventParams) *Event {
	id := p.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT)
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &Event{
		ID:             id,
		SubscriptionID: p.SubscriptionID,
		Type:           p.Type,
		APIEventType:   p.APIEventType,
		EffectiveDate:  p.EffectiveDate.UTC(),
		CreatedAt:      createdAt,
		PlanName:       p.PlanName,
		PhaseName:      p.PhaseName,
		FromTransfer:   p.FromTransfer,
		active:         true,
	}
}

// IsActive reports whether the event still participates in replay
func (e *Event) IsActive() bool {
	return e.active
}

// Deactivate retires the event. Idempotent, one-way.
func (e *Event) Deactivate() {
	e.active = false
}

// Clone returns an independent copy of the event. Stores hand out clones so
// readers keep a consistent snapshot while the canonical copy is mutated
// under the store's lock.
func (e *Event) Clone() *Event {
	clone := *e
	return &clone
}

// IsPending reports whether the event is active with an effective date
// strictly after the reference instant
func (e *Event) IsPending(reference time.Time) bool {
	return e.active && e.EffectiveDate.After(reference)
}

// IsCreateEquivalent reports whether replaying the event starts a plan
func (e *Event) IsCreateEquivalent() bool {
	return e.Type == types.SubscriptionEventTypeAPIUser && e.APIEventType.IsCreateEquivalent()
}

// IsPhase reports whether the event is a system generated phase rollover
func (e *Event) IsPhase() bool {
	return e.Type == types.SubscriptionEventTypePhase
}

// IsAPIEvent reports whether the event is user generated with the given sub type
func (e *Event) IsAPIEvent(t types.APIEventType) bool {
	return e.Type == types.SubscriptionEventTypeAPIUser && e.APIEventType == t
}
