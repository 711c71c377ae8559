package service

import (
	"github.com/billforge/billforge/internal/clock"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/catalog"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/notification"
)

// NewServiceParams bundles the shared dependencies for fx
func NewServiceParams(
	logger *logger.Logger,
	cfg *config.Configuration,
	clk clock.Clock,
	subRepo subscription.Repository,
	catalogRepo catalog.Repository,
	scheduler notification.Scheduler,
) ServiceParams {
	return ServiceParams{
		Logger:      logger,
		Config:      cfg,
		Clock:       clk,
		SubRepo:     subRepo,
		CatalogRepo: catalogRepo,
		Scheduler:   scheduler,
	}
}

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Clock  clock.Clock

	// Repositories
	SubRepo     subscription.Repository
	CatalogRepo catalog.Repository

	// Notification scheduling
	Scheduler notification.Scheduler
}
