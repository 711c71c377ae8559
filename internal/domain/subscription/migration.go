package subscription

// SubscriptionMigrationData is one subscription plus the event stream it
// arrives with during a bulk migrate or transfer
type SubscriptionMigrationData struct {
	Subscription  *Subscription
	InitialEvents []*Event
}

// BundleMigrationData is one bundle plus its subscriptions
type BundleMigrationData struct {
	Bundle        *Bundle
	Subscriptions []*SubscriptionMigrationData
}

// AccountMigrationData is everything migrated for one account. The migrate
// operation applies it all-or-nothing.
type AccountMigrationData struct {
	AccountID string
	Bundles   []*BundleMigrationData
}

// TransferCancelData pairs a source-account subscription with the cancel
// event written on it when the bundle transfers away
type TransferCancelData struct {
	SubscriptionID string
	CancelEvent    *Event
}

// SubscriptionRepairData replaces a subscription's residual future events
// with a repaired stream
type SubscriptionRepairData struct {
	SubscriptionID string
	NewEvents      []*Event
}
