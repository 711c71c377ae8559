package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
)

// orderedEvent pairs a canonical event with its insertion sequence. The
// sequence breaks effective-date ties so iteration order is total and stable.
type orderedEvent struct {
	event *subscription.Event
	seq   uint64
}

// SubscriptionRepository is the in-memory reference implementation of
// subscription.Repository. Every mutation, including a whole event batch,
// runs under a single write lock acquisition and reads hand out clones, so a
// reader never observes a partially applied batch. Production deployments
// replace it with a transactional persistence adapter behind the same
// interface.
type SubscriptionRepository struct {
	mu      sync.RWMutex
	bundles map[string]*subscription.Bundle
	subs    map[string]*subscription.Subscription
	events  []orderedEvent
	byID    map[string]int // event id -> index in events
	nextSeq uint64
	logger  *logger.Logger
}

func NewSubscriptionRepository(logger *logger.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		bundles: make(map[string]*subscription.Bundle),
		subs:    make(map[string]*subscription.Subscription),
		byID:    make(map[string]int),
		logger:  logger,
	}
}

func (r *SubscriptionRepository) CreateBundle(ctx context.Context, bundle *subscription.Bundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bundles[bundle.ID]; exists {
		return ierr.NewError("bundle already exists").
			WithReportableDetails(map[string]any{
				"bundle_id": bundle.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	r.bundles[bundle.ID] = bundle
	return nil
}

func (r *SubscriptionRepository) GetBundle(ctx context.Context, bundleID string) (*subscription.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bundle, exists := r.bundles[bundleID]
	if !exists {
		return nil, ierr.NewError("bundle not found").
			WithReportableDetails(map[string]any{
				"bundle_id": bundleID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return bundle, nil
}

func (r *SubscriptionRepository) GetBundlesForAccount(ctx context.Context, accountID string) ([]*subscription.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*subscription.Bundle
	for _, bundle := range r.bundles {
		if bundle.AccountID == accountID {
			results = append(results, bundle)
		}
	}
	sortBundles(results)
	return results, nil
}

func (r *SubscriptionRepository) GetBundlesForKey(ctx context.Context, externalKey string) ([]*subscription.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*subscription.Bundle
	for _, bundle := range r.bundles {
		if bundle.ExternalKey == externalKey {
			results = append(results, bundle)
		}
	}
	sortBundles(results)
	return results, nil
}

func (r *SubscriptionRepository) GetBundlesForAccountAndKey(ctx context.Context, accountID, externalKey string) ([]*subscription.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*subscription.Bundle
	for _, bundle := range r.bundles {
		if bundle.AccountID == accountID && bundle.ExternalKey == externalKey {
			results = append(results, bundle)
		}
	}
	sortBundles(results)
	return results, nil
}

func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[sub.ID]; exists {
		return ierr.NewError("subscription already exists").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	r.subs[sub.ID] = sub
	return nil
}

func (r *SubscriptionRepository) GetSubscription(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.subs[subscriptionID]
	if !exists {
		return nil, ierr.NewError("subscription not found").
			WithReportableDetails(map[string]any{
				"subscription_id": subscriptionID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

func (r *SubscriptionRepository) GetSubscriptions(ctx context.Context, bundleID string) ([]*subscription.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*subscription.Subscription
	for _, sub := range r.subs {
		if sub.BundleID == bundleID {
			results = append(results, sub)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (r *SubscriptionRepository) GetBaseSubscription(ctx context.Context, bundleID string) (*subscription.Subscription, error) {
	subs, err := r.GetSubscriptions(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if sub.Category.IsBase() {
			return sub, nil
		}
	}
	return nil, ierr.NewError("bundle has no base subscription").
		WithReportableDetails(map[string]any{
			"bundle_id": bundleID,
		}).
		Mark(ierr.ErrNotFound)
}

// InsertEvents validates the whole batch before touching the slice, so under
// the single lock acquisition either every event lands or none do.
func (r *SubscriptionRepository) InsertEvents(ctx context.Context, events []*subscription.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(events))
	for _, event := range events {
		_, stored := r.byID[event.ID]
		_, inBatch := seen[event.ID]
		if stored || inBatch {
			return ierr.NewError("event already exists").
				WithReportableDetails(map[string]any{
					"event_id": event.ID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		seen[event.ID] = struct{}{}
	}

	for _, event := range events {
		if err := r.insertLocked(event); err != nil {
			return err
		}
	}
	return nil
}

func (r *SubscriptionRepository) insertLocked(event *subscription.Event) error {
	if _, exists := r.byID[event.ID]; exists {
		return ierr.NewError("event already exists").
			WithReportableDetails(map[string]any{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	entry := orderedEvent{event: event, seq: r.nextSeq}
	r.nextSeq++

	// Sequences only grow, so the insertion point found on EffectiveDate
	// keeps the slice totally ordered by (EffectiveDate, seq)
	idx := sort.Search(len(r.events), func(i int) bool {
		return r.events[i].event.EffectiveDate.After(event.EffectiveDate)
	})
	r.events = append(r.events, orderedEvent{})
	copy(r.events[idx+1:], r.events[idx:])
	r.events[idx] = entry

	r.reindexFrom(idx)
	return nil
}

// RemoveEvents retracts a batch under one lock acquisition. IDs not present
// are reported after the rest of the batch has been removed, so a retraction
// racing a duplicate retraction still clears everything it can.
func (r *SubscriptionRepository) RemoveEvents(ctx context.Context, eventIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []string
	for _, eventID := range eventIDs {
		idx, exists := r.byID[eventID]
		if !exists {
			missing = append(missing, eventID)
			continue
		}
		r.events = append(r.events[:idx], r.events[idx+1:]...)
		delete(r.byID, eventID)
		r.reindexFrom(idx)
	}
	if len(missing) > 0 {
		return ierr.NewError("events not found").
			WithReportableDetails(map[string]any{
				"event_ids": missing,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *SubscriptionRepository) reindexFrom(idx int) {
	for i := idx; i < len(r.events); i++ {
		r.byID[r.events[i].event.ID] = i
	}
}

func (r *SubscriptionRepository) DeactivateLatestMatching(ctx context.Context, subscriptionID string, predicate subscription.EventPredicate, reference time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		ev := r.events[i].event
		if ev.SubscriptionID != subscriptionID {
			continue
		}
		if !ev.IsActive() || !ev.EffectiveDate.After(reference) {
			continue
		}
		if predicate(ev.Clone()) {
			ev.Deactivate()
			return true, nil
		}
	}
	return false, nil
}

func (r *SubscriptionRepository) GetEventsForSubscription(ctx context.Context, subscriptionID string) ([]*subscription.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*subscription.Event
	for _, entry := range r.events {
		if entry.event.SubscriptionID == subscriptionID {
			results = append(results, entry.event.Clone())
		}
	}
	return results, nil
}

func (r *SubscriptionRepository) GetPendingEvents(ctx context.Context, subscriptionID string, reference time.Time) ([]*subscription.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*subscription.Event
	for _, entry := range r.events {
		if entry.event.SubscriptionID == subscriptionID && entry.event.IsPending(reference) {
			results = append(results, entry.event.Clone())
		}
	}
	return results, nil
}

func (r *SubscriptionRepository) GetEventsForBundle(ctx context.Context, bundleID string) (map[string][]*subscription.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subIDs := make(map[string]bool)
	for _, sub := range r.subs {
		if sub.BundleID == bundleID {
			subIDs[sub.ID] = true
		}
	}

	results := make(map[string][]*subscription.Event, len(subIDs))
	for _, entry := range r.events {
		if subIDs[entry.event.SubscriptionID] {
			results[entry.event.SubscriptionID] = append(results[entry.event.SubscriptionID], entry.event.Clone())
		}
	}
	return results, nil
}

func (r *SubscriptionRepository) GetEventByID(ctx context.Context, eventID string) (*subscription.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, exists := r.byID[eventID]
	if !exists {
		return nil, ierr.NewError("event not found").
			WithReportableDetails(map[string]any{
				"event_id": eventID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return r.events[idx].event.Clone(), nil
}

// Clear drops everything; used between tests
func (r *SubscriptionRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bundles = make(map[string]*subscription.Bundle)
	r.subs = make(map[string]*subscription.Subscription)
	r.events = nil
	r.byID = make(map[string]int)
	r.nextSeq = 0
}

func sortBundles(bundles []*subscription.Bundle) {
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].ID < bundles[j].ID })
}
