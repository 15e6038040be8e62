package domain

import (
	"fmt"
	"strings"
)

// Role is the single role a user holds. Exactly one superadmin exists and
// every other role belongs to an organization.
type Role string

const (
	RoleSuperadmin     Role = "superadmin"
	RoleAdmin          Role = "admin"
	RoleComplianceTeam Role = "compliance_team"
	RoleITTeam         Role = "it_team"
	RoleManagementTeam Role = "management_team"
)

var allRoles = []Role{RoleSuperadmin, RoleAdmin, RoleComplianceTeam, RoleITTeam, RoleManagementTeam}

func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

func TeamRoles() []Role {
	return []Role{RoleComplianceTeam, RoleITTeam, RoleManagementTeam}
}

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}

// ParseTeamRole accepts only roles an admin may assign.
func ParseTeamRole(raw string) (Role, error) {
	role, err := ParseRole(raw)
	if err != nil {
		return "", err
	}
	if !role.IsTeamRole() {
		return "", fmt.Errorf("%w: %q is not a team role", ErrInvalidRole, raw)
	}
	return role, nil
}

func (r Role) Valid() bool {
	for _, candidate := range allRoles {
		if r == candidate {
			return true
		}
	}
	return false
}

func (r Role) IsTeamRole() bool {
	switch r {
	case RoleComplianceTeam, RoleITTeam, RoleManagementTeam:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
