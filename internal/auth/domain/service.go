package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	// Authenticate returns ErrInvalidCredentials for an unknown email, a
	// wrong password and an inactive account alike.
	Authenticate(ctx context.Context, email, password string) (*User, error)
	// Resolve turns a bearer token into the stored user. The role always
	// comes from the store, never from the token.
	Resolve(ctx context.Context, rawToken string) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	ChangePassword(ctx context.Context, actor *User, req ChangePasswordRequest) (*User, error)
	// ForgotPassword replaces the password of an active account and mails
	// the new one. Unknown and inactive emails succeed silently.
	ForgotPassword(ctx context.Context, email string) error
	CreateAdmin(ctx context.Context, actor *User, req CreateAdminRequest) (*User, error)
	ListAdmins(ctx context.Context, actor *User) ([]User, error)
	ListActiveUsers(ctx context.Context, actor *User) ([]User, error)
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        *User
}

type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     string
}

type CreateAdminRequest struct {
	Email          string
	FirstName      string
	LastName       string
	Password       string
	OrganizationID snowflake.ID
}
