package main

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/clock"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/kafka"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/notification"
	"github.com/billforge/billforge/internal/pubsub"
	pubsubKafka "github.com/billforge/billforge/internal/pubsub/kafka"
	pubsubMemory "github.com/billforge/billforge/internal/pubsub/memory"
	pubsubRouter "github.com/billforge/billforge/internal/pubsub/router"
	"github.com/billforge/billforge/internal/repository"
	"github.com/billforge/billforge/internal/service"
	"github.com/billforge/billforge/internal/types"
	"go.uber.org/fx"
)

func init() {
	// Every effective date computation runs in UTC
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Clock
			clock.New,

			// Notification transport
			providePubSub,
			pubsubRouter.NewRouter,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewCatalogRepository,

			// Scheduler
			provideScheduler,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewSubscriptionService,
			provideConsumer,
		),
		fx.Invoke(startService),
	)

	app := fx.New(opts...)
	app.Run()
}

// providePubSub picks the notification transport: kafka when brokers are
// configured, the in-process channel otherwise
func providePubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg)
		if err != nil {
			return nil, err
		}
		consumer, err := kafka.NewConsumer(cfg)
		if err != nil {
			return nil, err
		}
		return pubsubKafka.NewPubSub(cfg, log, producer, consumer), nil
	}
	return pubsubMemory.NewPubSub(cfg, log), nil
}

func provideScheduler(
	cfg *config.Configuration,
	log *logger.Logger,
	clk clock.Clock,
	pubSub pubsub.PubSub,
) notification.Scheduler {
	return notification.NewQueueScheduler(cfg, log, clk, pubSub)
}

func provideConsumer(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	log *logger.Logger,
	subscriptionService service.SubscriptionService,
) *notification.Consumer {
	return notification.NewConsumer(pubSub, cfg, log, subscriptionService)
}

func startService(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	scheduler notification.Scheduler,
	consumer *notification.Consumer,
	router *pubsubRouter.Router,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startScheduler(lc, scheduler, log)
		startMessageRouter(lc, router, consumer, log)
	case types.ModeConsumer:
		startMessageRouter(lc, router, consumer, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startScheduler(lc fx.Lifecycle, scheduler notification.Scheduler, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting notification scheduler...")
			return scheduler.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping notification scheduler...")
			return scheduler.Stop()
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	consumer *notification.Consumer,
	log *logger.Logger,
) {
	consumer.RegisterHandler(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("Starting notification router...")
				if err := router.Run(context.Background()); err != nil {
					log.Errorw("message router failed", "error", err)
				}
			}()
			<-router.Running()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping notification router...")
			return router.Close()
		},
	})
}
