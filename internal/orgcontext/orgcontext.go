package orgcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
)

var ErrOrgRequired = apperror.New(apperror.KindUnauthorized, "organization_required")

type ctxKey struct{}

func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, orgID)
}

func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	orgID, ok := ctx.Value(ctxKey{}).(snowflake.ID)
	if !ok || orgID == 0 {
		return 0, false
	}
	return orgID, true
}

// RequireOrgID is OrgIDFromContext for service entry points.
func RequireOrgID(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := OrgIDFromContext(ctx)
	if !ok {
		return 0, ErrOrgRequired
	}
	return orgID, nil
}
