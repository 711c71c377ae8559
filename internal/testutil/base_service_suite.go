package testutil

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/clock"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/catalog"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/repository/memory"
	"github.com/billforge/billforge/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores holds the repository interfaces for testing
type Stores struct {
	SubRepo     subscription.Repository
	CatalogRepo catalog.Repository
}

// BaseServiceTestSuite provides common functionality for service test suites:
// a request-scoped context, in-memory stores preloaded with the fixture
// catalog, a pinned test clock and a recording scheduler.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	logger    *logger.Logger
	config    *config.Configuration
	clock     *clock.TestClock
	scheduler *RecordingScheduler
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()
	s.config = cfg

	var err error
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.now = time.Date(2013, 8, 7, 6, 0, 0, 0, time.UTC)
	s.clock = clock.NewTestClock(s.now)
	s.scheduler = NewRecordingScheduler()
	s.stores = Stores{
		SubRepo:     memory.NewSubscriptionRepository(s.logger),
		CatalogRepo: NewTestCatalog(),
	}
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.SubRepo.(*memory.SubscriptionRepository).Clear()
	s.scheduler.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns the test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetClock returns the manually controlled test clock
func (s *BaseServiceTestSuite) GetClock() *clock.TestClock {
	return s.clock
}

// GetScheduler returns the recording scheduler
func (s *BaseServiceTestSuite) GetScheduler() *RecordingScheduler {
	return s.scheduler
}

// GetNow returns the instant the test clock was pinned to at setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
