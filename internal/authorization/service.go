package authorization

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
)

// Service is the single place role and tenant checks are made.
type Service interface {
	// Authorize checks the caller's stored role against the permission
	// table, then the tenant scope for tenant-scoped operations.
	Authorize(ctx context.Context, actor *authdomain.User, object, action string) error
	// RequireRole passes when the caller holds one of roles.
	RequireRole(actor *authdomain.User, roles ...authdomain.Role) error
	// RequireOrganization passes when the caller is a member of orgID. It is
	// the second check on records fetched for a tenant-scoped write.
	RequireOrganization(actor *authdomain.User, orgID snowflake.ID) error
	// OrganizationOf returns the caller's organization.
	OrganizationOf(actor *authdomain.User) (snowflake.ID, error)
	// AllowedRoles reports the roles the enforcer currently grants.
	AllowedRoles(object, action string) ([]authdomain.Role, error)
}
