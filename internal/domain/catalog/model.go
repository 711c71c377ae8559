package catalog

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// Product is the sellable thing a plan wraps
type Product struct {
	Name     string                `json:"name"`
	Category types.ProductCategory `json:"category"`
}

// Duration is the length of a plan phase
type Duration struct {
	Unit   types.TimeUnit `json:"unit"`
	Number int            `json:"number"`
}

// IsUnlimited reports whether a phase with this duration never ends
func (d Duration) IsUnlimited() bool {
	return d.Unit == types.TimeUnitUnlimited
}

// AddToDate returns start shifted by this duration. Calendar units use
// time.Time.AddDate so month-end and leap-year normalisation follow the
// standard library's rules.
func (d Duration) AddToDate(start time.Time) (time.Time, error) {
	switch d.Unit {
	case types.TimeUnitDays:
		return start.AddDate(0, 0, d.Number), nil
	case types.TimeUnitWeeks:
		return start.AddDate(0, 0, 7*d.Number), nil
	case types.TimeUnitMonths:
		return start.AddDate(0, d.Number, 0), nil
	case types.TimeUnitYears:
		return start.AddDate(d.Number, 0, 0), nil
	case types.TimeUnitUnlimited:
		return time.Time{}, ierr.NewError("unlimited duration has no end date").
			WithHint("An unlimited phase never rolls over").
			Mark(ierr.ErrInvalidOperation)
	default:
		return time.Time{}, ierr.NewError("unknown time unit").
			WithReportableDetails(map[string]any{
				"unit": d.Unit,
			}).
			Mark(ierr.ErrValidation)
	}
}

// PlanPhase is one phase of a plan, e.g. a 30 day trial followed by an
// evergreen phase
type PlanPhase struct {
	Name          string              `json:"name"`
	Type          types.PhaseType     `json:"type"`
	Duration      Duration            `json:"duration"`
	BillingPeriod types.BillingPeriod `json:"billing_period"`
}

// Plan is an ordered list of phases over a product
type Plan struct {
	Name    string       `json:"name"`
	Product Product      `json:"product"`
	Phases  []*PlanPhase `json:"phases"`
}

// InitialPhase returns the phase a subscription enters when the plan starts
func (p *Plan) InitialPhase() (*PlanPhase, error) {
	if len(p.Phases) == 0 {
		return nil, ierr.NewError("plan has no phases").
			WithReportableDetails(map[string]any{
				"plan": p.Name,
			}).
			Mark(ierr.ErrValidation)
	}
	return p.Phases[0], nil
}

// GetPhase returns the named phase of the plan
func (p *Plan) GetPhase(name string) (*PlanPhase, error) {
	for _, phase := range p.Phases {
		if phase.Name == name {
			return phase, nil
		}
	}
	return nil, ierr.NewError("phase not found in plan").
		WithReportableDetails(map[string]any{
			"plan":  p.Name,
			"phase": name,
		}).
		Mark(ierr.ErrNotFound)
}

// NextPhase returns the phase following the named one, or nil when the named
// phase is the last
func (p *Plan) NextPhase(name string) (*PlanPhase, error) {
	for i, phase := range p.Phases {
		if phase.Name == name {
			if i+1 < len(p.Phases) {
				return p.Phases[i+1], nil
			}
			return nil, nil
		}
	}
	return nil, ierr.NewError("phase not found in plan").
		WithReportableDetails(map[string]any{
			"plan":  p.Name,
			"phase": name,
		}).
		Mark(ierr.ErrNotFound)
}
