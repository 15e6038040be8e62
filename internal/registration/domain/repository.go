package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reg *PendingRegistration) error
	List(ctx context.Context) ([]PendingRegistration, error)
	// FetchAndDelete removes the registration and returns it. Of several
	// concurrent callers for the same id exactly one succeeds; the others
	// get ErrNotFound.
	FetchAndDelete(ctx context.Context, id snowflake.ID) (*PendingRegistration, error)
	IsEmailPending(ctx context.Context, email string) (bool, error)
}
