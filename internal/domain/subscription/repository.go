package subscription

import (
	"context"
	"time"
)

// EventPredicate selects events during a deactivation scan. The event passed
// in is a read-only view; implementations must not retain or mutate it.
type EventPredicate func(event *Event) bool

// Repository is the storage contract for bundles, subscriptions and the
// per-subscription ordered event streams. Implementations must guarantee:
//
//   - event retrieval is ordered by (EffectiveDate, insertion sequence) and
//     the order is stable across calls;
//   - reads return consistent snapshots: a reader never observes a partially
//     applied batch from a concurrent writer;
//   - InsertEvents is all-or-nothing and rejects already present event IDs.
type Repository interface {
	// Bundles
	CreateBundle(ctx context.Context, bundle *Bundle) error
	GetBundle(ctx context.Context, bundleID string) (*Bundle, error)
	GetBundlesForAccount(ctx context.Context, accountID string) ([]*Bundle, error)
	GetBundlesForKey(ctx context.Context, externalKey string) ([]*Bundle, error)
	GetBundlesForAccountAndKey(ctx context.Context, accountID, externalKey string) ([]*Bundle, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, subscription *Subscription) error
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	GetSubscriptions(ctx context.Context, bundleID string) ([]*Subscription, error)
	GetBaseSubscription(ctx context.Context, bundleID string) (*Subscription, error)

	// Events

	// InsertEvents lands a batch as one write: a concurrent reader observes
	// either the whole batch or none of it, and a rejected event ID leaves
	// the store untouched.
	InsertEvents(ctx context.Context, events []*Event) error

	// RemoveEvents retracts events inserted by the current composite
	// operation whose follow-up work failed. It exists only as the
	// compensation path; events are otherwise never deleted.
	RemoveEvents(ctx context.Context, eventIDs []string) error

	// DeactivateLatestMatching scans the subscription's events in descending
	// order and deactivates the first active event matching the predicate
	// with an effective date strictly after reference. At most one event is
	// deactivated per call; it reports whether a match was found.
	DeactivateLatestMatching(ctx context.Context, subscriptionID string, predicate EventPredicate, reference time.Time) (bool, error)

	GetEventsForSubscription(ctx context.Context, subscriptionID string) ([]*Event, error)
	GetPendingEvents(ctx context.Context, subscriptionID string, reference time.Time) ([]*Event, error)
	GetEventsForBundle(ctx context.Context, bundleID string) (map[string][]*Event, error)
	GetEventByID(ctx context.Context, eventID string) (*Event, error)
}
