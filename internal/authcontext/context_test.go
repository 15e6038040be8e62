package authcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
)

func TestUserRoundTrip(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Fatalf("expected no user on empty context")
	}

	orgID := snowflake.ID(42)
	user := &authdomain.User{ID: 1, Role: authdomain.RoleAdmin, OrganizationID: &orgID}
	ctx := WithUser(context.Background(), user)

	got, ok := UserFromContext(ctx)
	if !ok || got.ID != 1 {
		t.Fatalf("expected stored user, got %+v", got)
	}
	if id, ok := OrgIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("expected org 42, got %v", id)
	}
}

func TestOrgIDAbsentForSuperadmin(t *testing.T) {
	ctx := WithUser(context.Background(), &authdomain.User{ID: 1, Role: authdomain.RoleSuperadmin})
	if _, ok := OrgIDFromContext(ctx); ok {
		t.Fatalf("superadmin has no organization")
	}
}
