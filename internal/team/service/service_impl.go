package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/auth/password"
	"github.com/smallbiznis/complytics/internal/authorization"
	"github.com/smallbiznis/complytics/internal/clock"
	"github.com/smallbiznis/complytics/internal/notification"
	"github.com/smallbiznis/complytics/internal/observability/logger"
	"github.com/smallbiznis/complytics/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/complytics/internal/organization/domain"
	"github.com/smallbiznis/complytics/internal/team/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Users    authdomain.Repository
	Pending  authdomain.PendingEmails `optional:"true"`
	Orgs     orgdomain.Service
	Hasher   *password.Hasher
	Guard    authorization.Service
	Notifier notification.Notifier
	GenID    *snowflake.Node
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	users    authdomain.Repository
	pending  authdomain.PendingEmails
	orgs     orgdomain.Service
	hasher   *password.Hasher
	guard    authorization.Service
	notifier notification.Notifier
	genID    *snowflake.Node
	clock    clock.Clock
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("team.service"),
		repo:     p.Repo,
		users:    p.Users,
		pending:  p.Pending,
		orgs:     p.Orgs,
		hasher:   p.Hasher,
		guard:    p.Guard,
		notifier: p.Notifier,
		genID:    p.GenID,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

func (s *service) List(ctx context.Context, actor *authdomain.User, filter domain.ListFilter) ([]authdomain.User, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectTeamMember, authorization.ActionList); err != nil {
		return nil, err
	}
	if actor.Role == authdomain.RoleSuperadmin {
		return s.repo.List(ctx, filter.OrganizationID)
	}

	orgID, err := s.guard.OrganizationOf(actor)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, &orgID)
}

func (s *service) Create(ctx context.Context, actor *authdomain.User, req domain.CreateRequest) (*authdomain.User, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectTeamMember, authorization.ActionCreate); err != nil {
		return nil, err
	}
	orgID, err := s.guard.OrganizationOf(actor)
	if err != nil {
		return nil, err
	}

	email, err := authdomain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	firstName, lastName := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, authdomain.ErrInvalidName
	}
	role, err := authdomain.ParseTeamRole(req.Role)
	if err != nil {
		return nil, err
	}
	if err := authdomain.EnsureEmailAvailable(ctx, s.users, s.pending, email); err != nil {
		return nil, err
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	temporary, err := password.GenerateTemporary()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(ctx, temporary)
	if err != nil {
		return nil, err
	}

	createdBy := actor.ID
	now := s.clock.Now()
	member := &authdomain.User{
		ID:             s.genID.Generate(),
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		PasswordHash:   hash,
		Role:           role,
		OrganizationID: &orgID,
		IsActive:       true,
		CreatedBy:      &createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, member); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.NewMessage(notification.TemplateCredentials, member.Email, map[string]string{
		"email":             member.Email,
		"username":          member.Email,
		"password":          temporary,
		"organization_name": org.Name,
		"first_name":        member.FirstName,
		"last_name":         member.LastName,
		"role":              string(member.Role),
	}))
	s.metrics.RecordTeamChange(ctx, "create", 1)
	logger.WithContext(ctx, s.log).Info("team member created",
		zap.String("user_id", member.ID.String()),
		zap.String("role", string(member.Role)),
	)
	return member, nil
}

func (s *service) Update(ctx context.Context, actor *authdomain.User, id snowflake.ID, req domain.UpdateRequest) (*authdomain.User, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectTeamMember, authorization.ActionUpdate); err != nil {
		return nil, err
	}
	orgID, err := s.guard.OrganizationOf(actor)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return nil, domain.ErrEmptyPatch
	}

	fields := map[string]any{}
	if req.FirstName != nil {
		v := strings.TrimSpace(*req.FirstName)
		if v == "" {
			return nil, authdomain.ErrInvalidName
		}
		fields["first_name"] = v
	}
	if req.LastName != nil {
		v := strings.TrimSpace(*req.LastName)
		if v == "" {
			return nil, authdomain.ErrInvalidName
		}
		fields["last_name"] = v
	}
	var newRole authdomain.Role
	if req.Role != nil {
		newRole, err = authdomain.ParseTeamRole(*req.Role)
		if err != nil {
			return nil, err
		}
		fields["role"] = newRole
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	fields["updated_at"] = s.clock.Now()

	var before, after *authdomain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if before, err = repo.Find(ctx, orgID, id); err != nil {
			return err
		}
		if before.OrganizationID == nil {
			return domain.ErrNotFound
		}
		if err := s.guard.RequireOrganization(actor, *before.OrganizationID); err != nil {
			return err
		}
		if err := repo.Update(ctx, orgID, id, fields); err != nil {
			return err
		}
		after, err = repo.Find(ctx, orgID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if req.Role != nil && before.Role != after.Role {
		s.notifier.Notify(ctx, notification.NewMessage(notification.TemplateRoleChange, after.Email, map[string]string{
			"first_name": after.FirstName,
			"last_name":  after.LastName,
			"old_role":   string(before.Role),
			"new_role":   string(after.Role),
		}))
	}
	s.metrics.RecordTeamChange(ctx, "update", 1)
	logger.WithContext(ctx, s.log).Info("team member updated", zap.String("user_id", id.String()))
	return after, nil
}

func (s *service) Delete(ctx context.Context, actor *authdomain.User, id snowflake.ID) error {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectTeamMember, authorization.ActionDelete); err != nil {
		return err
	}
	orgID, err := s.guard.OrganizationOf(actor)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, orgID, []snowflake.ID{id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.ErrNotFound
	}
	s.metrics.RecordTeamChange(ctx, "delete", deleted)
	logger.WithContext(ctx, s.log).Info("team member deleted", zap.String("user_id", id.String()))
	return nil
}

func (s *service) BulkDelete(ctx context.Context, actor *authdomain.User, ids []snowflake.ID) (int64, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectTeamMember, authorization.ActionDelete); err != nil {
		return 0, err
	}
	orgID, err := s.guard.OrganizationOf(actor)
	if err != nil {
		return 0, err
	}

	unique := dedupe(ids)
	if len(unique) == 0 {
		return 0, domain.ErrNoMembers
	}

	deleted, err := s.repo.Delete(ctx, orgID, unique)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, domain.ErrNotFound
	}
	s.metrics.RecordTeamChange(ctx, "bulk_delete", deleted)
	logger.WithContext(ctx, s.log).Info("team members deleted",
		zap.Int("requested", len(unique)),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
