// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is a tenant. It is created only when a registration is
// approved, together with its first admin.
type Organization struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	Domain    string        `gorm:"type:text;not null" json:"domain"`
	Slug      string        `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	IsActive  bool          `gorm:"column:is_active;not null" json:"is_active"`
	CreatedBy *snowflake.ID `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
