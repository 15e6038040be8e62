package service

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/smallbiznis/complytics/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Repo        domain.Repository
	Users       authdomain.Repository
	Orgs        orgdomain.Service
	Hasher      *password.Hasher
	Guard       authorization.Service
	Notifier    notification.Notifier
	GenID       *snowflake.Node
	Clock       clock.Clock
	AuthMetrics *metrics.AuthMetrics `optional:"true"`
	Metrics     *metrics.Metrics     `optional:"true"`
}

type service struct {
	log         *zap.Logger
	repo        domain.Repository
	users       authdomain.Repository
	orgs        orgdomain.Service
	hasher      *password.Hasher
	guard       authorization.Service
	notifier    notification.Notifier
	genID       *snowflake.Node
	clock       clock.Clock
	authMetrics *metrics.AuthMetrics
	metrics     *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		log:         p.Log.Named("registration.service"),
		repo:        p.Repo,
		users:       p.Users,
		orgs:        p.Orgs,
		hasher:      p.Hasher,
		guard:       p.Guard,
		notifier:    p.Notifier,
		genID:       p.GenID,
		clock:       p.Clock,
		authMetrics: p.AuthMetrics,
		metrics:     p.Metrics,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Submitted, error) {
	email, err := authdomain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	firstName, lastName := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, authdomain.ErrInvalidName
	}
	if err := authdomain.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	orgName, orgDomain := strings.TrimSpace(req.OrganizationName), strings.TrimSpace(req.OrganizationDomain)
	if orgName == "" || orgDomain == "" {
		return nil, domain.ErrInvalidOrganization
	}

	if err := authdomain.EnsureEmailAvailable(ctx, s.users, s.repo, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	reg := &domain.PendingRegistration{
		ID:    s.genID.Generate(),
		Email: email,
		UserData: datatypes.NewJSONType(domain.Candidate{
			Email:              email,
			FirstName:          firstName,
			LastName:           lastName,
			PasswordHash:       hash,
			OrganizationName:   orgName,
			OrganizationDomain: orgDomain,
		}),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration(ctx, "submitted")
	logger.WithContext(ctx, s.log).Info("registration submitted", zap.String("registration_id", reg.ID.String()))
	return &domain.Submitted{ID: reg.ID, Email: email}, nil
}

func (s *service) ListPending(ctx context.Context, actor *authdomain.User) ([]domain.PendingRegistration, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectRegistration, authorization.ActionList); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *service) Approve(ctx context.Context, actor *authdomain.User, id snowflake.ID) (*domain.Approved, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectRegistration, authorization.ActionApprove); err != nil {
		return nil, err
	}
	log := logger.WithContext(ctx, s.log).With(zap.String("registration_id", id.String()))

	reg, err := s.repo.FetchAndDelete(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.authMetrics.IncApproval(metrics.OutcomeRejected, err)
		} else {
			s.authMetrics.IncApproval(metrics.OutcomeFailure, err)
		}
		return nil, err
	}
	candidate := reg.Candidate()

	exists, err := s.users.ExistsByEmail(ctx, candidate.Email)
	if err != nil {
		s.authMetrics.IncApproval(metrics.OutcomeFailure, err)
		return nil, err
	}
	if exists {
		log.Warn("registration email already taken by an account")
		s.authMetrics.IncApproval(metrics.OutcomeRejected, authdomain.ErrUserExists)
		return nil, authdomain.ErrUserExists
	}

	approved, temporary, err := s.provision(ctx, log, actor, reg)
	if errors.Is(err, authdomain.ErrUserExists) {
		log.Warn("registration email taken during approval", zap.Error(err))
		s.authMetrics.IncApproval(metrics.OutcomeRejected, authdomain.ErrUserExists)
		return nil, authdomain.ErrUserExists
	}
	if err != nil {
		s.authMetrics.IncApproval(metrics.OutcomeFailure, err)
		log.Error("approval failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrProvisioningFailed, err)
	}

	s.notifier.Notify(ctx, notification.NewMessage(notification.TemplateCredentials, approved.Admin.Email, map[string]string{
		"email":             approved.Admin.Email,
		"username":          approved.Admin.Email,
		"password":          temporary,
		"organization_name": approved.Organization.Name,
		"first_name":        approved.Admin.FirstName,
		"last_name":         approved.Admin.LastName,
		"role":              string(approved.Admin.Role),
	}))

	s.authMetrics.IncApproval(metrics.OutcomeSuccess, nil)
	s.metrics.RecordRegistration(ctx, "approved")
	log.Info("registration approved",
		zap.String("org_id", approved.Organization.ID.String()),
		zap.String("user_id", approved.Admin.ID.String()),
	)
	return approved, nil
}

// provision creates the organization and its admin. On failure every
// completed step is undone and the registration is put back so it can be
// approved again, unless its email now belongs to an account.
func (s *service) provision(ctx context.Context, log *zap.Logger, actor *authdomain.User, reg *domain.PendingRegistration) (*domain.Approved, string, error) {
	candidate := reg.Candidate()
	comp := &compensator{log: log, metrics: s.authMetrics}
	comp.push(stepRestoreRegistration, func(ctx context.Context) error {
		return s.repo.Create(ctx, reg)
	})

	org, err := s.orgs.Create(ctx, orgdomain.CreateOrganizationRequest{
		Name:      candidate.OrganizationName,
		Domain:    candidate.OrganizationDomain,
		CreatedBy: actor.ID,
	})
	if err != nil {
		comp.run(ctx, err)
		return nil, "", fmt.Errorf("create organization: %w", err)
	}
	comp.push("delete_organization", func(ctx context.Context) error {
		return s.orgs.Delete(ctx, org.ID)
	})

	temporary, err := password.GenerateTemporary()
	if err != nil {
		comp.run(ctx, err)
		return nil, "", fmt.Errorf("generate password: %w", err)
	}
	hash, err := s.hasher.Hash(ctx, temporary)
	if err != nil {
		comp.run(ctx, err)
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	orgID := org.ID
	approvedBy := actor.ID
	now := s.clock.Now()
	admin := &authdomain.User{
		ID:             s.genID.Generate(),
		Email:          candidate.Email,
		FirstName:      candidate.FirstName,
		LastName:       candidate.LastName,
		PasswordHash:   hash,
		Role:           authdomain.RoleAdmin,
		OrganizationID: &orgID,
		IsActive:       true,
		CreatedBy:      &approvedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if errors.Is(err, authdomain.ErrUserExists) {
			comp.drop(stepRestoreRegistration)
		}
		comp.run(ctx, err)
		return nil, "", fmt.Errorf("create admin: %w", err)
	}

	return &domain.Approved{Organization: org, Admin: admin}, temporary, nil
}
