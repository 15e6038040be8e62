package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/auth/password"
	"github.com/smallbiznis/complytics/internal/auth/token"
	"github.com/smallbiznis/complytics/internal/authorization"
	"github.com/smallbiznis/complytics/internal/clock"
	"github.com/smallbiznis/complytics/internal/notification"
	"github.com/smallbiznis/complytics/internal/observability/logger"
	"github.com/smallbiznis/complytics/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/complytics/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	tokenType = "bearer"

	// Hashed once and compared against when an email is unknown, so a miss
	// costs the same bcrypt work as a wrong password.
	timingDummyPassword = "complytics-timing-equalizer"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	Pending  domain.PendingEmails `optional:"true"`
	Hasher   *password.Hasher
	Tokens   *token.Service
	Orgs     orgdomain.Service
	Guard    authorization.Service
	Notifier notification.Notifier
	GenID    *snowflake.Node
	Clock    clock.Clock
	Metrics  *metrics.AuthMetrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	pending  domain.PendingEmails
	hasher   *password.Hasher
	tokens   *token.Service
	orgs     orgdomain.Service
	guard    authorization.Service
	notifier notification.Notifier
	genID    *snowflake.Node
	clock    clock.Clock
	metrics  *metrics.AuthMetrics

	dummyOnce sync.Once
	dummyHash string
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		log:      p.Log.Named("auth.service"),
		repo:     p.Repo,
		pending:  p.Pending,
		hasher:   p.Hasher,
		tokens:   p.Tokens,
		orgs:     p.Orgs,
		guard:    p.Guard,
		notifier: p.Notifier,
		genID:    p.GenID,
		clock:    clk,
		metrics:  p.Metrics,
	}
}

func (s *Service) Authenticate(ctx context.Context, email, pw string) (*domain.User, error) {
	user, err := s.authenticate(ctx, email, pw)
	switch {
	case err == nil:
		s.metrics.IncLogin(metrics.OutcomeSuccess)
	case errors.Is(err, domain.ErrInvalidCredentials):
		s.metrics.IncLogin(metrics.OutcomeRejected)
	default:
		s.metrics.IncLogin(metrics.OutcomeFailure)
	}
	return user, err
}

func (s *Service) authenticate(ctx context.Context, email, pw string) (*domain.User, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil || pw == "" {
		s.hasher.Verify(ctx, pw, s.timingHash(ctx))
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(ctx, pw, s.timingHash(ctx))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(ctx, pw, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) timingHash(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(ctx, timingDummyPassword)
		if err != nil {
			s.log.Warn("failed to prepare timing hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *Service) Resolve(ctx context.Context, rawToken string) (*domain.User, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		s.metrics.IncTokenVerification(metrics.OutcomeRejected)
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.repo.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.metrics.IncTokenVerification(metrics.OutcomeRejected)
		} else {
			s.metrics.IncTokenVerification(metrics.OutcomeFailure)
		}
		return nil, err
	}
	if !user.IsActive {
		s.metrics.IncTokenVerification(metrics.OutcomeRejected)
		return nil, domain.ErrUnauthenticated
	}

	s.metrics.IncTokenVerification(metrics.OutcomeSuccess)
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	user, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := s.tokens.Issue(user.Email, string(user.Role), 0)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("login", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return &domain.LoginResult{
		AccessToken: accessToken,
		TokenType:   tokenType,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

func (s *Service) ChangePassword(ctx context.Context, actor *domain.User, req domain.ChangePasswordRequest) (*domain.User, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectProfile, authorization.ActionUpdate); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(ctx, req.CurrentPassword, user.PasswordHash) {
		return nil, domain.ErrCurrentPassword
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return nil, err
	}
	if req.NewPassword == req.CurrentPassword {
		return nil, domain.ErrPasswordUnchanged
	}

	hash, err := s.hasher.Hash(ctx, req.NewPassword)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"password_hash": hash,
		"updated_at":    now,
	}); err != nil {
		return nil, err
	}

	user.PasswordHash = hash
	user.UpdatedAt = now
	logger.WithContext(ctx, s.log).Info("password changed", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil
	}

	user, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	temporary, err := password.GenerateTemporary()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(ctx, temporary)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"password_hash": hash,
		"updated_at":    s.clock.Now(),
	}); err != nil {
		return err
	}

	s.notifier.Notify(ctx, notification.NewMessage(notification.TemplateForgotPassword, user.Email, map[string]string{
		"username":   user.Email,
		"password":   temporary,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	}))
	logger.WithContext(ctx, s.log).Info("password reset issued", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *Service) CreateAdmin(ctx context.Context, actor *domain.User, req domain.CreateAdminRequest) (*domain.User, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectAdminAccount, authorization.ActionCreate); err != nil {
		return nil, err
	}

	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	firstName, lastName := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, domain.ErrInvalidName
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.OrganizationID == 0 {
		return nil, domain.ErrOrganizationRequired
	}
	if _, err := s.orgs.GetByID(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	if err := domain.EnsureEmailAvailable(ctx, s.repo, s.pending, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	orgID := req.OrganizationID
	createdBy := actor.ID
	now := s.clock.Now()
	user := &domain.User{
		ID:             s.genID.Generate(),
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		PasswordHash:   hash,
		Role:           domain.RoleAdmin,
		OrganizationID: &orgID,
		IsActive:       true,
		CreatedBy:      &createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("admin created",
		zap.String("user_id", user.ID.String()),
		zap.String("org_id", orgID.String()),
	)
	return user, nil
}

func (s *Service) ListAdmins(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectAdminAccount, authorization.ActionList); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, domain.ListFilter{Roles: []domain.Role{domain.RoleAdmin}})
}

func (s *Service) ListActiveUsers(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := s.guard.Authorize(ctx, actor, authorization.ObjectUser, authorization.ActionListActive); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, domain.ListFilter{ActiveOnly: true})
}
