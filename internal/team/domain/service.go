// Package domain defines the team roster contracts. A team member is a
// user holding one of the team roles inside an organization.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("team member not found")
	ErrEmptyPatch = errors.New("no fields to update")
	ErrNoMembers  = errors.New("at least one member id is required")
)

type Service interface {
	List(ctx context.Context, actor *authdomain.User, filter ListFilter) ([]authdomain.User, error)
	Create(ctx context.Context, actor *authdomain.User, req CreateRequest) (*authdomain.User, error)
	Update(ctx context.Context, actor *authdomain.User, id snowflake.ID, req UpdateRequest) (*authdomain.User, error)
	Delete(ctx context.Context, actor *authdomain.User, id snowflake.ID) error
	BulkDelete(ctx context.Context, actor *authdomain.User, ids []snowflake.ID) (int64, error)
}

// ListFilter is honoured for the superadmin only; admins always see their
// own organization.
type ListFilter struct {
	OrganizationID *snowflake.ID
}

type CreateRequest struct {
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// UpdateRequest is a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	FirstName *string
	LastName  *string
	Role      *string
	IsActive  *bool
}

func (r UpdateRequest) Empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.Role == nil && r.IsActive == nil
}

// Repository queries are always limited to team roles. A member of another
// organization is reported as ErrNotFound.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context, orgID *snowflake.ID) ([]authdomain.User, error)
	Find(ctx context.Context, orgID, id snowflake.ID) (*authdomain.User, error)
	Update(ctx context.Context, orgID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID) (int64, error)
}
