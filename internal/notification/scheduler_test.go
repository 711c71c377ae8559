package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/billforge/billforge/internal/clock"
	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/notification"
	pubsubMemory "github.com/billforge/billforge/internal/pubsub/memory"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/stretchr/testify/suite"
)

type SchedulerTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       *config.Configuration
	clock     *clock.TestClock
	scheduler *notification.QueueScheduler
	messages  <-chan *message.Message
}

func TestScheduler(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
	log, err := logger.NewLogger(s.cfg)
	s.Require().NoError(err)

	s.ctx, s.cancel = context.WithCancel(testutil.SetupContext())
	s.clock = clock.NewTestClock(time.Date(2013, 8, 7, 6, 0, 0, 0, time.UTC))

	pubSub := pubsubMemory.NewPubSub(s.cfg, log)
	s.messages, err = pubSub.Subscribe(s.ctx, s.cfg.Notification.Topic)
	s.Require().NoError(err)

	s.scheduler = notification.NewQueueScheduler(s.cfg, log, s.clock, pubSub)
}

func (s *SchedulerTestSuite) TearDownTest() {
	_ = s.scheduler.Stop()
	s.cancel()
}

func (s *SchedulerTestSuite) receive(timeout time.Duration) *notification.Envelope {
	select {
	case msg := <-s.messages:
		msg.Ack()
		envelope, err := notification.UnmarshalEnvelope(msg.Payload)
		s.Require().NoError(err)
		return envelope
	case <-time.After(timeout):
		return nil
	}
}

func (s *SchedulerTestSuite) TestDeliversOnceEffective() {
	s.Require().NoError(s.scheduler.Start(s.ctx))

	effective := s.clock.Now().Add(time.Hour)
	key := notification.Key{EventID: "event_due_later"}
	s.Require().NoError(s.scheduler.Schedule(s.ctx, effective, key))

	// Nothing may be delivered before the effective instant
	s.Nil(s.receive(100 * time.Millisecond))
	s.Equal(1, s.scheduler.PendingCount())

	s.clock.Advance(2 * time.Hour)

	envelope := s.receive(2 * time.Second)
	s.Require().NotNil(envelope)
	s.Equal(key, envelope.Key)
	s.True(envelope.EffectiveAt.Equal(effective.UTC()))
	s.Equal(0, s.scheduler.PendingCount())
}

func (s *SchedulerTestSuite) TestDeliversInEffectiveOrder() {
	s.Require().NoError(s.scheduler.Start(s.ctx))

	now := s.clock.Now()
	s.Require().NoError(s.scheduler.Schedule(s.ctx, now.Add(3*time.Hour), notification.Key{EventID: "event_third"}))
	s.Require().NoError(s.scheduler.Schedule(s.ctx, now.Add(time.Hour), notification.Key{EventID: "event_first"}))
	s.Require().NoError(s.scheduler.Schedule(s.ctx, now.Add(2*time.Hour), notification.Key{EventID: "event_second"}))

	s.clock.Advance(4 * time.Hour)

	for _, want := range []string{"event_first", "event_second", "event_third"} {
		envelope := s.receive(2 * time.Second)
		s.Require().NotNil(envelope)
		s.Equal(want, envelope.Key.EventID)
	}
}

func (s *SchedulerTestSuite) TestImmediatelyDueDelivered() {
	s.Require().NoError(s.scheduler.Start(s.ctx))

	// An effective instant already in the past is delivered right away
	s.Require().NoError(s.scheduler.Schedule(s.ctx, s.clock.Now().Add(-time.Minute), notification.Key{EventID: "event_overdue"}))

	envelope := s.receive(2 * time.Second)
	s.Require().NotNil(envelope)
	s.Equal("event_overdue", envelope.Key.EventID)
}

func (s *SchedulerTestSuite) TestScheduleFailsBeforeStart() {
	err := s.scheduler.Schedule(s.ctx, s.clock.Now().Add(time.Hour), notification.Key{EventID: "event_early"})
	s.Error(err)
	s.True(ierr.IsScheduling(err))
}

func (s *SchedulerTestSuite) TestScheduleFailsAfterStop() {
	s.Require().NoError(s.scheduler.Start(s.ctx))
	s.Require().NoError(s.scheduler.Stop())

	err := s.scheduler.Schedule(s.ctx, s.clock.Now().Add(time.Hour), notification.Key{EventID: "event_late"})
	s.Error(err)
	s.True(ierr.IsScheduling(err))
}

func (s *SchedulerTestSuite) TestStartTwiceRejected() {
	s.Require().NoError(s.scheduler.Start(s.ctx))
	s.Error(s.scheduler.Start(s.ctx))
}

func (s *SchedulerTestSuite) TestEnvelopeCarriesContextScope() {
	s.Require().NoError(s.scheduler.Start(s.ctx))

	s.Require().NoError(s.scheduler.Schedule(s.ctx, s.clock.Now(), notification.Key{EventID: "event_scoped"}))

	envelope := s.receive(2 * time.Second)
	s.Require().NotNil(envelope)
	s.NotEmpty(envelope.TenantID)
	s.NotEmpty(envelope.UserToken)
}
