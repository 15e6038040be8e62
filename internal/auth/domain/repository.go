package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

//go:generate mockgen -source=repository.go -destination=../mocks/mock_repository.go -package=mocks

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]User, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, id snowflake.ID) error
}

// PendingEmails answers whether an email is held by a registration that
// still awaits approval.
type PendingEmails interface {
	IsEmailPending(ctx context.Context, email string) (bool, error)
}

// EnsureEmailAvailable fails with ErrUserExists when email belongs to an
// account and with ErrEmailPending when a registration holds it. pending
// may be nil.
func EnsureEmailAvailable(ctx context.Context, users Repository, pending PendingEmails, email string) error {
	exists, err := users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}
	if pending == nil {
		return nil
	}
	held, err := pending.IsEmailPending(ctx, email)
	if err != nil {
		return err
	}
	if held {
		return ErrEmailPending
	}
	return nil
}
