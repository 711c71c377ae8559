package types

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionEventType is the coarse type of an event in a subscription's
// event stream. API_USER events are caused by user-facing operations, PHASE
// events are generated by the system when a plan phase rolls over.
type SubscriptionEventType string

const (
	SubscriptionEventTypeAPIUser SubscriptionEventType = "API_USER"
	SubscriptionEventTypePhase   SubscriptionEventType = "PHASE"
)

func (t SubscriptionEventType) String() string {
	return string(t)
}

func (t SubscriptionEventType) Validate() error {
	allowed := []SubscriptionEventType{
		SubscriptionEventTypeAPIUser,
		SubscriptionEventTypePhase,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid subscription event type").
			WithHint("Invalid subscription event type").
			WithReportableDetails(map[string]any{
				"type":          t,
				"allowed_types": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// APIEventType is the sub type of an API_USER event
type APIEventType string

const (
	APIEventTypeCreate             APIEventType = "CREATE"
	APIEventTypeReCreate           APIEventType = "RE_CREATE"
	APIEventTypeChange             APIEventType = "CHANGE"
	APIEventTypeCancel             APIEventType = "CANCEL"
	APIEventTypeUncancel           APIEventType = "UNCANCEL"
	APIEventTypeTransfer           APIEventType = "TRANSFER"
	APIEventTypeMigrateEntitlement APIEventType = "MIGRATE_ENTITLEMENT"
	APIEventTypeMigrateBilling     APIEventType = "MIGRATE_BILLING"
)

func (t APIEventType) String() string {
	return string(t)
}

// IsCreateEquivalent reports whether the event starts a plan on the
// subscription when replayed
func (t APIEventType) IsCreateEquivalent() bool {
	return t == APIEventTypeCreate ||
		t == APIEventTypeReCreate ||
		t == APIEventTypeTransfer ||
		t == APIEventTypeMigrateEntitlement
}

func (t APIEventType) Validate() error {
	allowed := []APIEventType{
		APIEventTypeCreate,
		APIEventTypeReCreate,
		APIEventTypeChange,
		APIEventTypeCancel,
		APIEventTypeUncancel,
		APIEventTypeTransfer,
		APIEventTypeMigrateEntitlement,
		APIEventTypeMigrateBilling,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid api event type").
			WithHint("Invalid api event type").
			WithReportableDetails(map[string]any{
				"type":          t,
				"allowed_types": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ProductCategory is the category of the product backing a subscription.
// A bundle holds at most one BASE subscription.
type ProductCategory string

const (
	ProductCategoryBase       ProductCategory = "BASE"
	ProductCategoryAddOn      ProductCategory = "ADD_ON"
	ProductCategoryStandalone ProductCategory = "STANDALONE"
)

func (c ProductCategory) String() string {
	return string(c)
}

// IsBase reports whether the category is BASE
func (c ProductCategory) IsBase() bool {
	return c == ProductCategoryBase
}

func (c ProductCategory) Validate() error {
	allowed := []ProductCategory{
		ProductCategoryBase,
		ProductCategoryAddOn,
		ProductCategoryStandalone,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid product category").
			WithHint("Invalid product category").
			WithReportableDetails(map[string]any{
				"category":           c,
				"allowed_categories": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionState is the derived lifecycle state of a subscription.
// It is never stored; it is recomputed by replaying the subscription's
// active events up to a given instant.
type SubscriptionState string

const (
	SubscriptionStatePending             SubscriptionState = "PENDING"
	SubscriptionStateActive              SubscriptionState = "ACTIVE"
	SubscriptionStateCancellationPending SubscriptionState = "CANCELLATION_PENDING"
	SubscriptionStateCancelled           SubscriptionState = "CANCELLED"
	SubscriptionStateTransferred         SubscriptionState = "TRANSFERRED"
)

func (s SubscriptionState) String() string {
	return string(s)
}

// PhaseType is the type of a plan phase
type PhaseType string

const (
	PhaseTypeTrial     PhaseType = "TRIAL"
	PhaseTypeDiscount  PhaseType = "DISCOUNT"
	PhaseTypeFixedTerm PhaseType = "FIXEDTERM"
	PhaseTypeEvergreen PhaseType = "EVERGREEN"
)

// BillingPeriod is the period of the billing cycle
type BillingPeriod string

const (
	BillingPeriodMonthly   BillingPeriod = "MONTHLY"
	BillingPeriodQuarterly BillingPeriod = "QUARTERLY"
	BillingPeriodAnnual    BillingPeriod = "ANNUAL"
	BillingPeriodNoBilling BillingPeriod = "NO_BILLING_PERIOD"
)

// TimeUnit is the unit of a phase duration. UNLIMITED phases never roll over,
// so a subscription sitting in one has no pending PHASE event to cancel.
type TimeUnit string

const (
	TimeUnitDays      TimeUnit = "DAYS"
	TimeUnitWeeks     TimeUnit = "WEEKS"
	TimeUnitMonths    TimeUnit = "MONTHS"
	TimeUnitYears     TimeUnit = "YEARS"
	TimeUnitUnlimited TimeUnit = "UNLIMITED"
)

func (u TimeUnit) Validate() error {
	allowed := []TimeUnit{
		TimeUnitDays,
		TimeUnitWeeks,
		TimeUnitMonths,
		TimeUnitYears,
		TimeUnitUnlimited,
	}
	if !lo.Contains(allowed, u) {
		return ierr.NewError("invalid time unit").
			WithHint("Invalid time unit").
			WithReportableDetails(map[string]any{
				"unit":          u,
				"allowed_units": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
