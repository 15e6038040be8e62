package domain

import (
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
)

func TestParseRole(t *testing.T) {
	for _, role := range AllRoles() {
		got, err := ParseRole(" " + string(role) + " ")
		if err != nil || got != role {
			t.Fatalf("ParseRole(%q) = %q, %v", role, got, err)
		}
	}
	if _, err := ParseRole("owner"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestParseTeamRole(t *testing.T) {
	if _, err := ParseTeamRole("it_team"); err != nil {
		t.Fatalf("expected it_team to be a team role: %v", err)
	}
	for _, raw := range []string{"admin", "superadmin", "janitor"} {
		if _, err := ParseTeamRole(raw); !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("expected %q to be rejected, got %v", raw, err)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Alice@Co.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Alice@Co.com" {
		t.Fatalf("expected case to be preserved, got %q", got)
	}
	for _, raw := range []string{"", "not-an-email", "Alice <alice@co.com>"} {
		if _, err := NormalizeEmail(raw); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("expected %q to be rejected, got %v", raw, err)
		}
	}
}

func TestUserBelongsTo(t *testing.T) {
	org := snowflake.ID(10)
	member := &User{OrganizationID: &org}
	if !member.BelongsTo(10) {
		t.Fatalf("expected membership")
	}
	if member.BelongsTo(11) {
		t.Fatalf("expected no membership in other org")
	}
	if (&User{}).BelongsTo(10) {
		t.Fatalf("superadmin belongs to no organization")
	}
}
