package notification

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/pubsub"
	pubsubRouter "github.com/billforge/billforge/internal/pubsub/router"
	"github.com/billforge/billforge/internal/types"
)

// Effectuator is the downstream callback fired for each delivered key. The
// scheduler does not deduplicate; implementations must re-read current state
// and tolerate keys whose event was deactivated or never committed.
type Effectuator interface {
	EffectuateNotification(ctx context.Context, key Key, effectiveAt time.Time) error
}

// Consumer bridges the notification topic to the registered Effectuator
type Consumer struct {
	pubSub      pubsub.PubSub
	config      *config.NotificationConfig
	logger      *logger.Logger
	effectuator Effectuator
}

func NewConsumer(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
	effectuator Effectuator,
) *Consumer {
	return &Consumer{
		pubSub:      pubSub,
		config:      &cfg.Notification,
		logger:      logger,
		effectuator: effectuator,
	}
}

// RegisterHandler attaches the consumer to the router
func (c *Consumer) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"subscription_notification_handler",
		c.config.Topic,
		c.pubSub,
		c.processMessage,
	)
}

func (c *Consumer) processMessage(msg *message.Message) error {
	envelope, err := UnmarshalEnvelope(msg.Payload)
	if err != nil {
		c.logger.Errorw("dropping undecodable notification",
			"error", err,
			"message_uuid", msg.UUID,
		)
		// Returning the error would retry a message that can never decode
		return nil
	}

	ctx := msg.Context()
	if envelope.TenantID != "" {
		ctx = types.SetTenantID(ctx, envelope.TenantID)
	}
	if envelope.AccountID != "" {
		ctx = types.SetAccountID(ctx, envelope.AccountID)
	}

	c.logger.Debugw("delivering notification",
		"event_id", envelope.Key.EventID,
		"effective_at", envelope.EffectiveAt,
	)

	return c.effectuator.EffectuateNotification(ctx, envelope.Key, envelope.EffectiveAt)
}
