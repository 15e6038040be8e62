package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/pkg/db"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return New(conn)
}

func orgPtr(id int64) *snowflake.ID {
	v := snowflake.ID(id)
	return &v
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &domain.User{ID: 1, Email: "alice@co.com", Role: domain.RoleAdmin, OrganizationID: orgPtr(10), IsActive: true}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &domain.User{ID: 2, Email: "alice@co.com", Role: domain.RoleITTeam, OrganizationID: orgPtr(10), IsActive: true}
	if err := repo.Create(ctx, dup); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestFindAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	users := []*domain.User{
		{ID: 1, Email: "root@co.com", Role: domain.RoleSuperadmin, IsActive: true},
		{ID: 2, Email: "admin@a.com", Role: domain.RoleAdmin, OrganizationID: orgPtr(10), IsActive: true},
		{ID: 3, Email: "bob@a.com", Role: domain.RoleITTeam, OrganizationID: orgPtr(10), IsActive: false},
		{ID: 4, Email: "admin@b.com", Role: domain.RoleAdmin, OrganizationID: orgPtr(20), IsActive: true},
	}
	for _, u := range users {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Email, err)
		}
	}

	got, err := repo.FindByEmail(ctx, "bob@a.com")
	if err != nil || got.ID != 3 {
		t.Fatalf("expected bob, got %+v, %v", got, err)
	}
	if got.IsActive {
		t.Fatalf("expected inactive flag to persist")
	}
	if _, err := repo.FindByEmail(ctx, "BOB@a.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected case-sensitive lookup to miss, got %v", err)
	}

	admins, err := repo.List(ctx, domain.ListFilter{Roles: []domain.Role{domain.RoleAdmin}})
	if err != nil || len(admins) != 2 {
		t.Fatalf("expected 2 admins, got %d, %v", len(admins), err)
	}

	active, err := repo.List(ctx, domain.ListFilter{ActiveOnly: true})
	if err != nil || len(active) != 3 {
		t.Fatalf("expected 3 active users, got %d, %v", len(active), err)
	}

	orgA, err := repo.List(ctx, domain.ListFilter{OrganizationID: orgPtr(10)})
	if err != nil || len(orgA) != 2 {
		t.Fatalf("expected 2 users in org 10, got %d, %v", len(orgA), err)
	}

	exists, err := repo.ExistsByEmail(ctx, "admin@b.com")
	if err != nil || !exists {
		t.Fatalf("expected admin@b.com to exist, got %v, %v", exists, err)
	}
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpdateFields(ctx, 99, map[string]any{"first_name": "x"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on update, got %v", err)
	}
	if err := repo.Delete(ctx, 99); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on delete, got %v", err)
	}

	if err := repo.Create(ctx, &domain.User{ID: 5, Email: "c@co.com", Role: domain.RoleAdmin, OrganizationID: orgPtr(1), IsActive: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.UpdateFields(ctx, 5, map[string]any{"role": domain.RoleITTeam}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.FindByID(ctx, 5)
	if err != nil || got.Role != domain.RoleITTeam {
		t.Fatalf("expected updated role, got %+v, %v", got, err)
	}
	if err := repo.Delete(ctx, 5); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
