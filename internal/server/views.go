package server

import (
	"time"

	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	organizationdomain "github.com/smallbiznis/complytics/internal/organization/domain"
	registrationdomain "github.com/smallbiznis/complytics/internal/registration/domain"
)

// Ids are rendered as decimal strings; JSON numbers lose precision past
// 2^53.

type userView struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Role           string    `json:"role"`
	OrganizationID *string   `json:"organization_id"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

func newUserView(u *authdomain.User) userView {
	view := userView{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role.String(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
	if u.OrganizationID != nil {
		orgID := u.OrganizationID.String()
		view.OrganizationID = &orgID
	}
	return view
}

func newUserViews(users []authdomain.User) []userView {
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, newUserView(&users[i]))
	}
	return out
}

type organizationView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func newOrganizationView(o *organizationdomain.Organization) organizationView {
	return organizationView{
		ID:        o.ID.String(),
		Name:      o.Name,
		Domain:    o.Domain,
		Slug:      o.Slug,
		IsActive:  o.IsActive,
		CreatedAt: o.CreatedAt,
	}
}

// pendingRegistrationView never carries the password hash.
type pendingRegistrationView struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	OrganizationName   string    `json:"organization_name"`
	OrganizationDomain string    `json:"organization_domain"`
	IsApproved         bool      `json:"is_approved"`
	CreatedAt          time.Time `json:"created_at"`
}

func newPendingRegistrationView(p *registrationdomain.PendingRegistration) pendingRegistrationView {
	candidate := p.Candidate()
	return pendingRegistrationView{
		ID:                 p.ID.String(),
		Email:              p.Email,
		FirstName:          candidate.FirstName,
		LastName:           candidate.LastName,
		OrganizationName:   candidate.OrganizationName,
		OrganizationDomain: candidate.OrganizationDomain,
		IsApproved:         p.IsApproved,
		CreatedAt:          p.CreatedAt,
	}
}
