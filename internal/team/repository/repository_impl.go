package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/team/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) members(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("role IN ?", authdomain.TeamRoles())
}

func (r *repository) List(ctx context.Context, orgID *snowflake.ID) ([]authdomain.User, error) {
	q := r.members(ctx)
	if orgID != nil {
		q = q.Where("organization_id = ?", *orgID)
	}
	var users []authdomain.User
	if err := q.Order("created_at ASC, id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) Find(ctx context.Context, orgID, id snowflake.ID) (*authdomain.User, error) {
	var user authdomain.User
	err := r.members(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) Update(ctx context.Context, orgID, id snowflake.ID, fields map[string]any) error {
	tx := r.members(ctx).
		Where("organization_id = ? AND id = ?", orgID, id).
		Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).
		Where("role IN ?", authdomain.TeamRoles()).
		Where("organization_id = ? AND id IN ?", orgID, ids).
		Delete(&authdomain.User{})
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}
