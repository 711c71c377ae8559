package testutil

import (
	"context"

	"github.com/billforge/billforge/internal/types"
)

// SetupContext returns a context carrying the default tenant, user and a
// fresh request id, the way request middleware would populate it
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxTenantID, types.DefaultTenantID)
	ctx = context.WithValue(ctx, types.CtxUserID, types.DefaultUserID)
	ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
	return ctx
}
