package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/billforge/billforge/internal/notification"
)

// ScheduledNotification is one registration recorded by RecordingScheduler
type ScheduledNotification struct {
	Key         notification.Key
	EffectiveAt time.Time
}

// RecordingScheduler is a notification.Scheduler for tests. It records every
// registration instead of dispatching, and can be told to fail so callers can
// exercise their rollback paths.
type RecordingScheduler struct {
	mu        sync.Mutex
	scheduled []ScheduledNotification
	failErr   error
	gate      chan struct{}
	arrived   chan struct{}
}

func NewRecordingScheduler() *RecordingScheduler {
	return &RecordingScheduler{}
}

func (s *RecordingScheduler) Schedule(ctx context.Context, effectiveAt time.Time, key notification.Key) error {
	s.mu.Lock()
	failErr := s.failErr
	gate := s.gate
	arrived := s.arrived
	s.mu.Unlock()

	if failErr != nil {
		return failErr
	}
	if gate != nil {
		arrived <- struct{}{}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, ScheduledNotification{
		Key:         key,
		EffectiveAt: effectiveAt,
	})
	return nil
}

// Hold parks every subsequent Schedule call until Release is called, so tests
// can observe the store while a caller is stalled mid-registration.
func (s *RecordingScheduler) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.arrived = make(chan struct{}, 16)
}

// AwaitBlocked returns once a Schedule call has reached the gate
func (s *RecordingScheduler) AwaitBlocked() {
	s.mu.Lock()
	arrived := s.arrived
	s.mu.Unlock()
	<-arrived
}

// Release unparks every Schedule call held by Hold
func (s *RecordingScheduler) Release() {
	s.mu.Lock()
	gate := s.gate
	s.gate = nil
	s.arrived = nil
	s.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (s *RecordingScheduler) Start(ctx context.Context) error { return nil }

func (s *RecordingScheduler) Stop() error { return nil }

// FailWith makes every subsequent Schedule call return err. Pass nil to
// restore normal behaviour.
func (s *RecordingScheduler) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Scheduled returns a copy of every recorded registration in order
func (s *RecordingScheduler) Scheduled() []ScheduledNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduledNotification, len(s.scheduled))
	copy(out, s.scheduled)
	return out
}

// ScheduledKeys returns the recorded event ids in registration order
func (s *RecordingScheduler) ScheduledKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.scheduled))
	for _, item := range s.scheduled {
		out = append(out, item.Key.EventID)
	}
	return out
}

// Clear drops every recorded registration and unparks held callers
func (s *RecordingScheduler) Clear() {
	s.Release()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = nil
	s.failErr = nil
}
