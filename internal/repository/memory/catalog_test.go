package memory

import (
	"context"
	"testing"
	"time"

	"github.com/billforge/billforge/internal/domain/catalog"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *CatalogRepository {
	repo := NewCatalogRepository()
	repo.AddPlan(&catalog.Plan{
		Name:    "two-phase",
		Product: catalog.Product{Name: "core", Category: types.ProductCategoryBase},
		Phases: []*catalog.PlanPhase{
			{
				Name:     "trial",
				Type:     types.PhaseTypeTrial,
				Duration: catalog.Duration{Unit: types.TimeUnitDays, Number: 30},
			},
			{
				Name:     "evergreen",
				Type:     types.PhaseTypeEvergreen,
				Duration: catalog.Duration{Unit: types.TimeUnitUnlimited},
			},
		},
	})
	return repo
}

func TestResolvePlanPhase(t *testing.T) {
	ctx := context.Background()
	repo := testCatalog()
	asOf := time.Date(2013, 8, 7, 6, 0, 0, 0, time.UTC)

	// An empty phase name resolves to the plan's initial phase
	phase, err := repo.ResolvePlanPhase(ctx, "two-phase", "", asOf)
	require.NoError(t, err)
	assert.Equal(t, "trial", phase.Name)

	phase, err = repo.ResolvePlanPhase(ctx, "two-phase", "evergreen", asOf)
	require.NoError(t, err)
	assert.Equal(t, "evergreen", phase.Name)

	_, err = repo.ResolvePlanPhase(ctx, "two-phase", "discount", asOf)
	assert.True(t, ierr.IsNotFound(err))

	_, err = repo.ResolvePlanPhase(ctx, "missing-plan", "", asOf)
	assert.True(t, ierr.IsNotFound(err))
}
