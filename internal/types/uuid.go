package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex event_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_EVENT        = "event"
	UUID_PREFIX_SUBSCRIPTION = "subs"
	UUID_PREFIX_BUNDLE       = "bundle"
	UUID_PREFIX_ACCOUNT      = "acc"
	UUID_PREFIX_PLAN         = "plan"
)
