package notification

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/billforge/billforge/internal/clock"
	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/pubsub"
	"github.com/billforge/billforge/internal/types"
	"github.com/google/uuid"
)

// Scheduler registers future notifications and guarantees at-least-once
// delivery of each key at or after its effective instant, never before.
// Delivery happens on the scheduler's own goroutine, outside the caller's
// call stack. There is no cancel operation: superseding a future event is
// done by deactivating it in the store, and the consumer skips keys whose
// event is gone or inactive by the time they fire.
type Scheduler interface {
	// Schedule registers a notification. It fails fast when the scheduler
	// is not accepting registrations; it never blocks on delivery.
	Schedule(ctx context.Context, effectiveAt time.Time, key Key) error

	// Start begins the delivery loop
	Start(ctx context.Context) error

	// Stop drains nothing and stops accepting registrations
	Stop() error
}

type pendingNotification struct {
	envelope    *Envelope
	effectiveAt time.Time
}

type notificationHeap []*pendingNotification

func (h notificationHeap) Len() int { return len(h) }
func (h notificationHeap) Less(i, j int) bool {
	return h[i].effectiveAt.Before(h[j].effectiveAt)
}
func (h notificationHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *notificationHeap) Push(x any) {
	*h = append(*h, x.(*pendingNotification))
}

func (h *notificationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// QueueScheduler implements Scheduler over a pubsub transport. Registrations
// are held in a min-heap ordered by effective instant; a single goroutine
// sleeps until the earliest registration is due and then publishes its
// envelope on the configured topic. A failed publish keeps the registration
// queued, so delivery is at-least-once.
type QueueScheduler struct {
	cfg    *config.Configuration
	logger *logger.Logger
	clock  clock.Clock
	pubSub pubsub.PubSub

	mu      sync.Mutex
	pending notificationHeap
	running bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func NewQueueScheduler(
	cfg *config.Configuration,
	logger *logger.Logger,
	clk clock.Clock,
	pubSub pubsub.PubSub,
) *QueueScheduler {
	return &QueueScheduler{
		cfg:    cfg,
		logger: logger,
		clock:  clk,
		pubSub: pubSub,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *QueueScheduler) Schedule(ctx context.Context, effectiveAt time.Time, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || !s.running {
		return ierr.NewError("notification scheduler is not accepting registrations").
			WithHint("The notification substrate is unavailable").
			WithReportableDetails(map[string]any{
				"event_id": key.EventID,
			}).
			Mark(ierr.ErrScheduling)
	}

	envelope := &Envelope{
		Key:         key,
		EffectiveAt: effectiveAt.UTC(),
		UserToken:   uuid.NewString(),
		AccountID:   types.GetAccountID(ctx),
		TenantID:    types.GetTenantID(ctx),
	}
	heap.Push(&s.pending, &pendingNotification{
		envelope:    envelope,
		effectiveAt: effectiveAt.UTC(),
	})

	s.logger.Debugw("registered notification",
		"event_id", key.EventID,
		"effective_at", effectiveAt,
	)

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *QueueScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return ierr.NewError("scheduler already started").
			Mark(ierr.ErrInvalidOperation)
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

func (s *QueueScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.running = false
	close(s.done)
	return nil
}

func (s *QueueScheduler) run(ctx context.Context) {
	pollInterval := s.cfg.Notification.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		s.dispatchDue(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(pollInterval)

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// dispatchDue publishes every registration whose effective instant has
// passed. Failed publishes are re-queued and retried on the next tick.
func (s *QueueScheduler) dispatchDue(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*pendingNotification
	for len(s.pending) > 0 && !s.pending[0].effectiveAt.After(now) {
		due = append(due, heap.Pop(&s.pending).(*pendingNotification))
	}
	s.mu.Unlock()

	for _, item := range due {
		if err := s.publish(ctx, item); err != nil {
			s.logger.Errorw("failed to publish due notification, requeueing",
				"error", err,
				"event_id", item.envelope.Key.EventID,
			)
			s.mu.Lock()
			heap.Push(&s.pending, item)
			s.mu.Unlock()
		}
	}
}

func (s *QueueScheduler) publish(ctx context.Context, item *pendingNotification) error {
	payload, err := item.envelope.Marshal()
	if err != nil {
		return err
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("tenant_id", item.envelope.TenantID)
	msg.Metadata.Set("event_id", item.envelope.Key.EventID)

	if err := s.pubSub.Publish(ctx, s.cfg.Notification.Topic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Notification substrate rejected the message").
			Mark(ierr.ErrScheduling)
	}

	s.logger.Debugw("published notification",
		"event_id", item.envelope.Key.EventID,
		"effective_at", item.envelope.EffectiveAt,
	)
	return nil
}

// PendingCount reports how many registrations have not yet been delivered
func (s *QueueScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
