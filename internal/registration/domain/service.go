package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	orgdomain "github.com/smallbiznis/complytics/internal/organization/domain"
)

var (
	ErrNotFound            = errors.New("registration not found")
	ErrInvalidOrganization = errors.New("organization name and domain are required")
	ErrProvisioningFailed  = errors.New("failed to approve registration")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Submitted, error)
	ListPending(ctx context.Context, actor *authdomain.User) ([]PendingRegistration, error)
	Approve(ctx context.Context, actor *authdomain.User, id snowflake.ID) (*Approved, error)
}

type RegisterRequest struct {
	Email              string
	FirstName          string
	LastName           string
	Password           string
	OrganizationName   string
	OrganizationDomain string
}

type Submitted struct {
	ID    snowflake.ID
	Email string
}

type Approved struct {
	Organization *orgdomain.Organization
	Admin        *authdomain.User
}
