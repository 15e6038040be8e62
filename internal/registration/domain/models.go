// Package domain contains the pending registration model and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Candidate is the self-service signup payload kept until approval. The
// password is stored only as a hash.
type Candidate struct {
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	PasswordHash       string `json:"password_hash"`
	OrganizationName   string `json:"organization_name"`
	OrganizationDomain string `json:"organization_domain"`
}

// PendingRegistration exists only while awaiting approval. Approval deletes
// the row, so IsApproved is always false for a stored record.
type PendingRegistration struct {
	ID         snowflake.ID                  `gorm:"primaryKey" json:"id"`
	Email      string                        `gorm:"type:text;not null;uniqueIndex:ux_pending_registrations_email" json:"email"`
	UserData   datatypes.JSONType[Candidate] `gorm:"column:user_data;not null" json:"user_data"`
	IsApproved bool                          `gorm:"column:is_approved;not null" json:"is_approved"`
	ApprovedBy *snowflake.ID                 `gorm:"column:approved_by" json:"approved_by,omitempty"`
	ApprovedAt *time.Time                    `gorm:"column:approved_at" json:"approved_at,omitempty"`
	CreatedAt  time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PendingRegistration) TableName() string { return "pending_registrations" }

func (p *PendingRegistration) Candidate() Candidate {
	return p.UserData.Data()
}
