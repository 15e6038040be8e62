package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/authorization"
	"github.com/smallbiznis/complytics/internal/clock"
	"github.com/smallbiznis/complytics/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Repo  domain.Repository
	Guard authorization.Service
	GenID *snowflake.Node
	Clock clock.Clock
}

type service struct {
	log   *zap.Logger
	repo  domain.Repository
	guard authorization.Service
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		log:   p.Log.Named("organization.service"),
		repo:  p.Repo,
		guard: p.Guard,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	orgDomain := strings.ToLower(strings.TrimSpace(req.Domain))
	if orgDomain == "" {
		return nil, domain.ErrInvalidDomain
	}

	id := s.genID.Generate()
	now := s.clock.Now()
	org := &domain.Organization{
		ID:        id,
		Name:      name,
		Domain:    orgDomain,
		Slug:      makeSlug(name, id),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.CreatedBy != 0 {
		createdBy := req.CreatedBy
		org.CreatedBy = &createdBy
	}

	if err := s.repo.Create(ctx, org); err != nil {
		return nil, err
	}
	s.log.Info("organization created", zap.String("org_id", id.String()), zap.String("slug", org.Slug))
	return org, nil
}

// makeSlug suffixes the id so organizations may share a display name.
func makeSlug(name string, id snowflake.ID) string {
	base := slug.Make(name)
	if base == "" {
		return id.Base36()
	}
	return base + "-" + id.Base36()
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("organization deleted", zap.String("org_id", id.String()))
	return nil
}

func (s *service) ListActive(ctx context.Context, actor *authdomain.User) ([]domain.Organization, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectOrganization, authorization.ActionList); err != nil {
		return nil, err
	}
	return s.repo.ListActive(ctx)
}
