// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an account of any role. OrganizationID is nil only for the
// superadmin.
type User struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	Email          string        `gorm:"type:text;not null;uniqueIndex"`
	FirstName      string        `gorm:"column:first_name;type:text;not null"`
	LastName       string        `gorm:"column:last_name;type:text;not null"`
	PasswordHash   string        `gorm:"column:password_hash;type:text;not null"`
	Role           Role          `gorm:"type:text;not null;index"`
	OrganizationID *snowflake.ID `gorm:"column:organization_id;index"`
	IsActive       bool          `gorm:"column:is_active;not null"`
	CreatedBy      *snowflake.ID `gorm:"column:created_by"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// BelongsTo reports whether the user is a member of orgID.
func (u *User) BelongsTo(orgID snowflake.ID) bool {
	return u != nil && u.OrganizationID != nil && *u.OrganizationID == orgID
}

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return u.FirstName + " " + u.LastName
}

// ListFilter narrows user listings. Zero values mean no constraint.
type ListFilter struct {
	Roles          []Role
	OrganizationID *snowflake.ID
	ActiveOnly     bool
}
