package authorization

import authdomain "github.com/smallbiznis/complytics/internal/auth/domain"

const (
	ObjectAdminAccount = "admin_account"
	ObjectOrganization = "organization"
	ObjectUser         = "user"
	ObjectRegistration = "registration"
	ObjectTeamMember   = "team_member"
	ObjectProfile      = "profile"
)

const (
	ActionCreate     = "create"
	ActionList       = "list"
	ActionListActive = "list_active"
	ActionApprove    = "approve"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionView       = "view"
)

// Requirement is one row of the permission table: the roles allowed to
// perform Action on Object. TenantScoped rows additionally require the
// caller to belong to an organization.
type Requirement struct {
	Object       string
	Action       string
	Roles        []authdomain.Role
	TenantScoped bool
}

var (
	superadminOnly   = []authdomain.Role{authdomain.RoleSuperadmin}
	adminOnly        = []authdomain.Role{authdomain.RoleAdmin}
	adminOrSuperuser = []authdomain.Role{authdomain.RoleAdmin, authdomain.RoleSuperadmin}
)

// Requirements is the complete permission table. Policies in the store are
// reconciled against it at startup.
var Requirements = []Requirement{
	{Object: ObjectAdminAccount, Action: ActionCreate, Roles: superadminOnly},
	{Object: ObjectAdminAccount, Action: ActionList, Roles: superadminOnly},
	{Object: ObjectOrganization, Action: ActionList, Roles: superadminOnly},
	{Object: ObjectUser, Action: ActionListActive, Roles: superadminOnly},
	{Object: ObjectRegistration, Action: ActionList, Roles: superadminOnly},
	{Object: ObjectRegistration, Action: ActionApprove, Roles: superadminOnly},

	{Object: ObjectTeamMember, Action: ActionList, Roles: adminOrSuperuser},
	{Object: ObjectTeamMember, Action: ActionCreate, Roles: adminOnly, TenantScoped: true},
	{Object: ObjectTeamMember, Action: ActionUpdate, Roles: adminOnly, TenantScoped: true},
	{Object: ObjectTeamMember, Action: ActionDelete, Roles: adminOnly, TenantScoped: true},

	{Object: ObjectProfile, Action: ActionView, Roles: []authdomain.Role{memberRole}},
	{Object: ObjectProfile, Action: ActionUpdate, Roles: []authdomain.Role{memberRole}},
}

// memberRole is an implicit role every account inherits.
const memberRole authdomain.Role = "member"

func subjectFor(role authdomain.Role) string {
	return "role:" + string(role)
}

func lookupRequirement(object, action string) (Requirement, bool) {
	for _, req := range Requirements {
		if req.Object == object && req.Action == action {
			return req, true
		}
	}
	return Requirement{}, false
}

func desiredPolicies() [][]string {
	var out [][]string
	for _, req := range Requirements {
		for _, role := range req.Roles {
			out = append(out, []string{subjectFor(role), req.Object, req.Action})
		}
	}
	return out
}

func desiredGroupings() [][]string {
	out := make([][]string, 0, len(authdomain.AllRoles()))
	for _, role := range authdomain.AllRoles() {
		out = append(out, []string{subjectFor(role), subjectFor(memberRole)})
	}
	return out
}
