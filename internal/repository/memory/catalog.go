package memory

import (
	"context"
	"sync"
	"time"

	"github.com/billforge/billforge/internal/domain/catalog"
	ierr "github.com/billforge/billforge/internal/errors"
)

// CatalogRepository is a static in-memory catalog. It ignores asOf: a single
// unversioned catalog is enough for the core, and versioned lookups stay
// behind the same interface.
type CatalogRepository struct {
	mu    sync.RWMutex
	plans map[string]*catalog.Plan
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		plans: make(map[string]*catalog.Plan),
	}
}

// AddPlan registers a plan in the catalog
func (r *CatalogRepository) AddPlan(plan *catalog.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[plan.Name] = plan
}

func (r *CatalogRepository) GetPlan(ctx context.Context, planName string, asOf time.Time) (*catalog.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plan, exists := r.plans[planName]
	if !exists {
		return nil, ierr.NewError("plan not found in catalog").
			WithReportableDetails(map[string]any{
				"plan": planName,
			}).
			Mark(ierr.ErrNotFound)
	}
	return plan, nil
}

func (r *CatalogRepository) ResolvePlanPhase(ctx context.Context, planName string, phaseName string, asOf time.Time) (*catalog.PlanPhase, error) {
	plan, err := r.GetPlan(ctx, planName, asOf)
	if err != nil {
		return nil, err
	}
	if phaseName == "" {
		return plan.InitialPhase()
	}
	return plan.GetPhase(phaseName)
}
