// Package authcontext carries the resolved caller through request contexts.
package authcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
)

// UserContextKey is the request context key for the authenticated user.
type UserContextKey struct{}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, user *authdomain.User) context.Context {
	return context.WithValue(ctx, UserContextKey{}, user)
}

// UserFromContext returns the authenticated user, if set.
func UserFromContext(ctx context.Context) (*authdomain.User, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(UserContextKey{}).(*authdomain.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// OrgIDFromContext returns the caller's organization. The superadmin has none.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	user, ok := UserFromContext(ctx)
	if !ok || user.OrganizationID == nil {
		return 0, false
	}
	return *user.OrganizationID, true
}
