package testutil

import (
	"github.com/billforge/billforge/internal/domain/catalog"
	"github.com/billforge/billforge/internal/repository/memory"
	"github.com/billforge/billforge/internal/types"
)

// Plan names available in the test catalog
const (
	PlanStandardMonthly = "standard-monthly"
	PlanPremiumAnnual   = "premium-annual"
	PlanBasicEvergreen  = "basic-evergreen"
	PlanAddOnMonthly    = "addon-monthly"
)

// Phase names shared by the test plans
const (
	PhaseTrial     = "trial"
	PhaseDiscount  = "discount"
	PhaseEvergreen = "evergreen"
)

// NewTestCatalog returns an in-memory catalog preloaded with the fixture
// plans used across the service and projection tests
func NewTestCatalog() *memory.CatalogRepository {
	repo := memory.NewCatalogRepository()
	for _, plan := range fixturePlans() {
		repo.AddPlan(plan)
	}
	return repo
}

func fixturePlans() []*catalog.Plan {
	return []*catalog.Plan{
		{
			Name: PlanStandardMonthly,
			Product: catalog.Product{
				Name:     "Standard",
				Category: types.ProductCategoryBase,
			},
			Phases: []*catalog.PlanPhase{
				{
					Name:          PhaseTrial,
					Type:          types.PhaseTypeTrial,
					Duration:      catalog.Duration{Unit: types.TimeUnitDays, Number: 30},
					BillingPeriod: types.BillingPeriodNoBilling,
				},
				{
					Name:          PhaseEvergreen,
					Type:          types.PhaseTypeEvergreen,
					Duration:      catalog.Duration{Unit: types.TimeUnitUnlimited},
					BillingPeriod: types.BillingPeriodMonthly,
				},
			},
		},
		{
			Name: PlanPremiumAnnual,
			Product: catalog.Product{
				Name:     "Premium",
				Category: types.ProductCategoryBase,
			},
			Phases: []*catalog.PlanPhase{
				{
					Name:          PhaseTrial,
					Type:          types.PhaseTypeTrial,
					Duration:      catalog.Duration{Unit: types.TimeUnitDays, Number: 14},
					BillingPeriod: types.BillingPeriodNoBilling,
				},
				{
					Name:          PhaseDiscount,
					Type:          types.PhaseTypeDiscount,
					Duration:      catalog.Duration{Unit: types.TimeUnitMonths, Number: 12},
					BillingPeriod: types.BillingPeriodAnnual,
				},
				{
					Name:          PhaseEvergreen,
					Type:          types.PhaseTypeEvergreen,
					Duration:      catalog.Duration{Unit: types.TimeUnitUnlimited},
					BillingPeriod: types.BillingPeriodAnnual,
				},
			},
		},
		{
			Name: PlanBasicEvergreen,
			Product: catalog.Product{
				Name:     "Basic",
				Category: types.ProductCategoryBase,
			},
			Phases: []*catalog.PlanPhase{
				{
					Name:          PhaseEvergreen,
					Type:          types.PhaseTypeEvergreen,
					Duration:      catalog.Duration{Unit: types.TimeUnitUnlimited},
					BillingPeriod: types.BillingPeriodMonthly,
				},
			},
		},
		{
			Name: PlanAddOnMonthly,
			Product: catalog.Product{
				Name:     "ExtraSeats",
				Category: types.ProductCategoryAddOn,
			},
			Phases: []*catalog.PlanPhase{
				{
					Name:          PhaseEvergreen,
					Type:          types.PhaseTypeEvergreen,
					Duration:      catalog.Duration{Unit: types.TimeUnitUnlimited},
					BillingPeriod: types.BillingPeriodMonthly,
				},
			},
		},
	}
}
