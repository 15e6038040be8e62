package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads policies from the casbin_rule table and reconciles
// them with Requirements.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor *authdomain.User, object, action string) error {
	if actor == nil || actor.ID == 0 {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	if !actor.IsActive {
		s.denied(ctx, actor, object, action, "inactive")
		return ErrForbidden
	}

	roles, err := s.AllowedRoles(object, action)
	if err != nil {
		return err
	}
	if err := s.RequireRole(actor, roles...); err != nil {
		s.denied(ctx, actor, object, action, "role")
		return err
	}

	if req, ok := lookupRequirement(object, action); ok && req.TenantScoped {
		if _, err := s.OrganizationOf(actor); err != nil {
			s.denied(ctx, actor, object, action, "tenant")
			return err
		}
	}
	return nil
}

func (s *ServiceImpl) RequireRole(actor *authdomain.User, roles ...authdomain.Role) error {
	if actor == nil {
		return ErrInvalidActor
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

func (s *ServiceImpl) RequireOrganization(actor *authdomain.User, orgID snowflake.ID) error {
	if actor == nil {
		return ErrInvalidActor
	}
	if !actor.BelongsTo(orgID) {
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) OrganizationOf(actor *authdomain.User) (snowflake.ID, error) {
	if actor == nil {
		return 0, ErrInvalidActor
	}
	if actor.OrganizationID == nil || *actor.OrganizationID == 0 {
		return 0, fmt.Errorf("%w: %w", ErrForbidden, ErrNoOrganization)
	}
	return *actor.OrganizationID, nil
}

// AllowedRoles asks the enforcer which account roles may perform action on
// object, so inherited grants such as the member role are included.
func (s *ServiceImpl) AllowedRoles(object, action string) ([]authdomain.Role, error) {
	var out []authdomain.Role
	for _, role := range authdomain.AllRoles() {
		ok, err := s.enforcer.Enforce(subjectFor(role), object, action)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (s *ServiceImpl) denied(ctx context.Context, actor *authdomain.User, object, action, reason string) {
	logger.WithContext(ctx, s.log).Info("authorization denied",
		zap.String("user_id", actor.ID.String()),
		zap.String("role", string(actor.Role)),
		zap.String("object", object),
		zap.String("action", action),
		zap.String("reason", reason),
	)
}

// seedPolicies makes the stored policies and role groupings equal to the
// permission table. Rules that are no longer declared are removed.
func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	want := make(map[string]struct{})
	for _, policy := range desiredPolicies() {
		want[strings.Join(policy, "|")] = struct{}{}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	existing, err := enforcer.GetPolicy()
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if _, ok := want[strings.Join(rule, "|")]; ok {
			continue
		}
		if _, err := enforcer.RemovePolicy(rule); err != nil {
			return err
		}
	}

	wantGroups := make(map[string]struct{})
	for _, grouping := range desiredGroupings() {
		wantGroups[strings.Join(grouping, "|")] = struct{}{}
		if _, err := enforcer.AddGroupingPolicy(grouping); err != nil {
			return err
		}
	}
	groupings, err := enforcer.GetGroupingPolicy()
	if err != nil {
		return err
	}
	for _, rule := range groupings {
		if _, ok := wantGroups[strings.Join(rule, "|")]; ok {
			continue
		}
		if _, err := enforcer.RemoveGroupingPolicy(rule); err != nil {
			return err
		}
	}
	return nil
}
