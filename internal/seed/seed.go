// Package seed creates the records a fresh deployment needs before it can
// serve requests.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/auth/password"
	"github.com/smallbiznis/complytics/internal/clock"
	"github.com/smallbiznis/complytics/internal/config"
	"github.com/smallbiznis/complytics/internal/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	superadminLockKey = "complytics:seed:superadmin"
	superadminLockTTL = 30 * time.Second
)

var ErrSuperadminConflict = errors.New("bootstrap email belongs to a non-superadmin account")

var Module = fx.Module("seed",
	fx.Provide(NewSeeder),
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
	Users  authdomain.Repository
	Hasher *password.Hasher
	Locker *lock.Locker `optional:"true"`
	GenID  *snowflake.Node
	Clock  clock.Clock
}

type Seeder struct {
	log       *zap.Logger
	bootstrap config.BootstrapConfig
	users     authdomain.Repository
	hasher    *password.Hasher
	locker    *lock.Locker
	genID     *snowflake.Node
	clock     clock.Clock
}

func NewSeeder(p Params) *Seeder {
	return &Seeder{
		log:       p.Log.Named("seed"),
		bootstrap: p.Config.Bootstrap,
		users:     p.Users,
		hasher:    p.Hasher,
		locker:    p.Locker,
		genID:     p.GenID,
		clock:     p.Clock,
	}
}

// EnsureSuperadmin creates the single superadmin from bootstrap
// configuration. It is a no-op once any superadmin exists, so it is safe
// to run on every start and from several replicas at once.
func (s *Seeder) EnsureSuperadmin(ctx context.Context) error {
	err := s.locker.Do(ctx, superadminLockKey, superadminLockTTL, s.ensureSuperadmin)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.log.Info("superadmin seeding running elsewhere, skipping")
		return nil
	}
	return err
}

func (s *Seeder) ensureSuperadmin(ctx context.Context) error {
	existing, err := s.users.List(ctx, authdomain.ListFilter{Roles: []authdomain.Role{authdomain.RoleSuperadmin}})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if s.bootstrap.SuperadminEmail != "" && existing[0].Email != s.bootstrap.SuperadminEmail {
			s.log.Warn("superadmin already exists with a different email, bootstrap email ignored",
				zap.String("user_id", existing[0].ID.String()),
			)
		}
		return nil
	}

	if s.bootstrap.SuperadminEmail == "" {
		s.log.Warn("no superadmin exists and SUPERADMIN_EMAIL is unset, registrations cannot be approved")
		return nil
	}

	email, err := authdomain.NormalizeEmail(s.bootstrap.SuperadminEmail)
	if err != nil {
		return err
	}
	if err := authdomain.ValidatePassword(s.bootstrap.SuperadminPassword); err != nil {
		return err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return ErrSuperadminConflict
	} else if !errors.Is(err, authdomain.ErrUserNotFound) {
		return err
	}

	hash, err := s.hasher.Hash(ctx, s.bootstrap.SuperadminPassword)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	user := &authdomain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		FirstName:    nameOr(s.bootstrap.SuperadminFirstName, "Super"),
		LastName:     nameOr(s.bootstrap.SuperadminLastName, "Admin"),
		PasswordHash: hash,
		Role:         authdomain.RoleSuperadmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return err
	}

	s.log.Info("superadmin created", zap.String("user_id", user.ID.String()))
	return nil
}

func nameOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
