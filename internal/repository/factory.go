package repository

import (
	"github.com/billforge/billforge/internal/domain/catalog"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
	memoryRepo "github.com/billforge/billforge/internal/repository/memory"
)

// NewSubscriptionRepository returns the subscription store. Only the
// in-memory variant ships with the core; durable persistence is an external
// adapter implementing subscription.Repository.
func NewSubscriptionRepository(logger *logger.Logger) subscription.Repository {
	return memoryRepo.NewSubscriptionRepository(logger)
}

// NewCatalogRepository returns the catalog lookup
func NewCatalogRepository() catalog.Repository {
	return memoryRepo.NewCatalogRepository()
}
