package auth

// Role is the access level carried in a token.
type Role string

// Roles in ascending order of privilege.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole validates a role string.
func NormalizeRole(value string) (Role, bool) {
	role := Role(value)
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role grants required. Unknown roles grant
// nothing.
func RoleAtLeast(role, required Role) bool {
	return roleRanks[role] > 0 && roleRanks[role] >= roleRanks[required]
}
