package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("organization not found")
	ErrInvalidName   = errors.New("organization name is required")
	ErrInvalidDomain = errors.New("organization domain is required")
)

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	// Delete removes an organization outright. It exists for compensating a
	// failed provisioning and is not exposed over HTTP.
	Delete(ctx context.Context, id snowflake.ID) error
	ListActive(ctx context.Context, actor *authdomain.User) ([]Organization, error)
}

type CreateOrganizationRequest struct {
	Name      string
	Domain    string
	CreatedBy snowflake.ID
}
