package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/registration/domain"
	"github.com/smallbiznis/complytics/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &repository{db: conn}
}

// NewPendingEmails exposes the repository as the email-availability check
// used by account creation.
func NewPendingEmails(repo domain.Repository) authdomain.PendingEmails {
	return repo
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reg *domain.PendingRegistration) error {
	err := r.db.WithContext(ctx).Create(reg).Error
	if db.IsDuplicateKeyErr(err) {
		return authdomain.ErrEmailPending
	}
	return err
}

func (r *repository) List(ctx context.Context) ([]domain.PendingRegistration, error) {
	var regs []domain.PendingRegistration
	err := r.db.WithContext(ctx).
		Where("is_approved = ?", false).
		Order("created_at ASC, id ASC").
		Find(&regs).Error
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *repository) FetchAndDelete(ctx context.Context, id snowflake.ID) (*domain.PendingRegistration, error) {
	var out *domain.PendingRegistration
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg domain.PendingRegistration
		if err := tx.Where("id = ?", id).First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		res := tx.Where("id = ?", id).Delete(&domain.PendingRegistration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return domain.ErrNotFound
		}
		out = &reg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) IsEmailPending(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.PendingRegistration{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}
