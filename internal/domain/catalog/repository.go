package catalog

import (
	"context"
	"time"
)

// Repository is the catalog lookup consumed during replay and event
// construction. The catalog itself (plan and price definitions, versioning)
// lives outside this core; the asOf parameter lets a versioned implementation
// resolve against the catalog version effective at that instant.
type Repository interface {
	// GetPlan returns the plan effective at asOf
	GetPlan(ctx context.Context, planName string, asOf time.Time) (*Plan, error)

	// ResolvePlanPhase resolves one phase of a plan effective at asOf
	ResolvePlanPhase(ctx context.Context, planName string, phaseName string, asOf time.Time) (*PlanPhase, error)
}
