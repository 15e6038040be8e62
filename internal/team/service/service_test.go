package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/auth/password"
	authrepository "github.com/smallbiznis/complytics/internal/auth/repository"
	"github.com/smallbiznis/complytics/internal/authorization"
	"github.com/smallbiznis/complytics/internal/clock"
	"github.com/smallbiznis/complytics/internal/notification"
	orgdomain "github.com/smallbiznis/complytics/internal/organization/domain"
	orgrepository "github.com/smallbiznis/complytics/internal/organization/repository"
	orgservice "github.com/smallbiznis/complytics/internal/organization/service"
	"github.com/smallbiznis/complytics/internal/team/domain"
	"github.com/smallbiznis/complytics/internal/team/repository"
	"github.com/smallbiznis/complytics/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// unscopedRepo finds members in any organization, so only the guard stands
// between a caller and another tenant's record.
type unscopedRepo struct {
	domain.Repository
	users authdomain.Repository
}

func (r unscopedRepo) WithTx(tx *gorm.DB) domain.Repository {
	return unscopedRepo{Repository: r.Repository.WithTx(tx), users: authrepository.New(tx)}
}

func (r unscopedRepo) Find(ctx context.Context, _ snowflake.ID, id snowflake.ID) (*authdomain.User, error) {
	return r.users.FindByID(ctx, id)
}

type fixture struct {
	svc        domain.Service
	params     Params
	users      authdomain.Repository
	notifier   *notification.Recorder
	node       *snowflake.Node
	superadmin *authdomain.User
	adminA     *authdomain.User
	adminB     *authdomain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}, &orgdomain.Organization{}))
	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	guard := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
	orgs := orgservice.NewService(orgservice.Params{
		Log:   zap.NewNop(),
		Repo:  orgrepository.NewRepository(conn),
		Guard: guard,
		GenID: node,
		Clock: clk,
	})
	users := authrepository.New(conn)
	ctx := context.Background()

	orgX, err := orgs.Create(ctx, orgdomain.CreateOrganizationRequest{Name: "X", Domain: "x.com"})
	require.NoError(t, err)
	orgY, err := orgs.Create(ctx, orgdomain.CreateOrganizationRequest{Name: "Y", Domain: "y.com"})
	require.NoError(t, err)

	mkUser := func(email string, role authdomain.Role, orgID *snowflake.ID) *authdomain.User {
		u := &authdomain.User{
			ID: node.Generate(), Email: email, FirstName: "F", LastName: "L",
			Role: role, OrganizationID: orgID, IsActive: true,
		}
		require.NoError(t, users.Create(ctx, u))
		return u
	}

	f := &fixture{
		users:    users,
		notifier: &notification.Recorder{},
		node:     node,
	}
	f.superadmin = mkUser("root@complytics.io", authdomain.RoleSuperadmin, nil)
	f.adminA = mkUser("admin@x.com", authdomain.RoleAdmin, &orgX.ID)
	f.adminB = mkUser("admin@y.com", authdomain.RoleAdmin, &orgY.ID)

	f.params = Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Repo:     repository.NewRepository(conn),
		Users:    users,
		Orgs:     orgs,
		Hasher:   password.NewHasher(bcrypt.MinCost),
		Guard:    guard,
		Notifier: f.notifier,
		GenID:    node,
		Clock:    clk,
	}
	f.svc = NewService(f.params)
	return f
}

func bob() domain.CreateRequest {
	return domain.CreateRequest{Email: "bob@x.com", FirstName: "Bob", LastName: "Jones", Role: "it_team"}
}

func TestTeamScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member, err := f.svc.Create(ctx, f.adminA, bob())
	require.NoError(t, err)
	assert.Equal(t, authdomain.RoleITTeam, member.Role)
	assert.True(t, member.BelongsTo(*f.adminA.OrganizationID))
	require.NotNil(t, member.CreatedBy)
	assert.Equal(t, f.adminA.ID, *member.CreatedBy)

	msg, ok := f.notifier.Last(notification.TemplateCredentials)
	require.True(t, ok)
	assert.Equal(t, "bob@x.com", msg.To)
	assert.Equal(t, "X", msg.Data["organization_name"])
	assert.Len(t, msg.Data["password"], password.TemporaryLength)

	listed, err := f.svc.List(ctx, f.adminA, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, member.ID, listed[0].ID)

	err = f.svc.Delete(ctx, f.adminB, member.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.users.FindByID(ctx, member.ID)
	require.NoError(t, err, "cross-tenant delete must not remove the member")
}

func TestListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.adminA, bob())
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.adminB, domain.CreateRequest{Email: "carol@y.com", FirstName: "Carol", LastName: "Y", Role: "compliance_team"})
	require.NoError(t, err)

	listB, err := f.svc.List(ctx, f.adminB, domain.ListFilter{OrganizationID: f.adminA.OrganizationID})
	require.NoError(t, err)
	require.Len(t, listB, 1, "admins ignore the organization filter")
	assert.Equal(t, "carol@y.com", listB[0].Email)

	all, err := f.svc.List(ctx, f.superadmin, domain.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyX, err := f.svc.List(ctx, f.superadmin, domain.ListFilter{OrganizationID: f.adminA.OrganizationID})
	require.NoError(t, err)
	require.Len(t, onlyX, 1)
	assert.Equal(t, "bob@x.com", onlyX[0].Email)

	member := &authdomain.User{ID: 9, Role: authdomain.RoleITTeam, OrganizationID: f.adminA.OrganizationID, IsActive: true}
	_, err = f.svc.List(ctx, member, domain.ListFilter{})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := bob()
	bad.Role = "admin"
	_, err := f.svc.Create(ctx, f.adminA, bad)
	assert.ErrorIs(t, err, authdomain.ErrInvalidRole)

	_, err = f.svc.Create(ctx, f.adminA, bob())
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.adminA, bob())
	assert.ErrorIs(t, err, authdomain.ErrUserExists)

	_, err = f.svc.Create(ctx, f.superadmin, domain.CreateRequest{Email: "z@x.com", FirstName: "Z", LastName: "Z", Role: "it_team"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestUpdateRoleChangeNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member, err := f.svc.Create(ctx, f.adminA, bob())
	require.NoError(t, err)

	role := "management_team"
	inactive := false
	updated, err := f.svc.Update(ctx, f.adminA, member.ID, domain.UpdateRequest{Role: &role, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, authdomain.RoleManagementTeam, updated.Role)
	assert.False(t, updated.IsActive)

	msg, ok := f.notifier.Last(notification.TemplateRoleChange)
	require.True(t, ok)
	assert.Equal(t, "it_team", msg.Data["old_role"])
	assert.Equal(t, "management_team", msg.Data["new_role"])

	name := "Robert"
	before := len(f.notifier.Messages())
	_, err = f.svc.Update(ctx, f.adminA, member.ID, domain.UpdateRequest{FirstName: &name})
	require.NoError(t, err)
	assert.Len(t, f.notifier.Messages(), before, "no notification without a role change")
}

func TestUpdateScopingAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member, err := f.svc.Create(ctx, f.adminA, bob())
	require.NoError(t, err)

	name := "Mallory"
	_, err = f.svc.Update(ctx, f.adminB, member.ID, domain.UpdateRequest{FirstName: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := f.users.FindByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", stored.FirstName)

	_, err = f.svc.Update(ctx, f.adminA, member.ID, domain.UpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyPatch)

	admin := "admin"
	_, err = f.svc.Update(ctx, f.adminA, member.ID, domain.UpdateRequest{Role: &admin})
	assert.ErrorIs(t, err, authdomain.ErrInvalidRole)

	_, err = f.svc.Update(ctx, f.adminA, f.adminA.ID, domain.UpdateRequest{FirstName: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound, "admins are not team members")
}

func TestUpdateChecksMemberOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member, err := f.svc.Create(ctx, f.adminA, bob())
	require.NoError(t, err)

	params := f.params
	params.Repo = unscopedRepo{Repository: params.Repo, users: f.users}
	svc := NewService(params)

	name := "Mallory"
	_, err = svc.Update(ctx, f.adminB, member.ID, domain.UpdateRequest{FirstName: &name})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	stored, err := f.users.FindByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", stored.FirstName)

	updated, err := svc.Update(ctx, f.adminA, member.ID, domain.UpdateRequest{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Mallory", updated.FirstName)
}

func TestBulkDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bobMember, err := f.svc.Create(ctx, f.adminA, bob())
	require.NoError(t, err)
	dan, err := f.svc.Create(ctx, f.adminA, domain.CreateRequest{Email: "dan@x.com", FirstName: "Dan", LastName: "X", Role: "compliance_team"})
	require.NoError(t, err)
	carol, err := f.svc.Create(ctx, f.adminB, domain.CreateRequest{Email: "carol@y.com", FirstName: "Carol", LastName: "Y", Role: "it_team"})
	require.NoError(t, err)

	_, err = f.svc.BulkDelete(ctx, f.adminA, nil)
	assert.ErrorIs(t, err, domain.ErrNoMembers)

	_, err = f.svc.BulkDelete(ctx, f.adminA, []snowflake.ID{carol.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := f.svc.BulkDelete(ctx, f.adminA, []snowflake.ID{bobMember.ID, dan.ID, dan.ID, carol.ID, f.node.Generate()})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	_, err = f.users.FindByID(ctx, carol.ID)
	require.NoError(t, err)

	err = f.svc.Delete(ctx, f.adminA, bobMember.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
