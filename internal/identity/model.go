package identity

import "strings"

type Role string

const (
	RoleAdmin        Role = "Admin"
	RoleManager      Role = "Manager"
	RoleDeliveryCrew Role = "Delivery crew"
	RoleCustomer     Role = "Customer"
)

// ParseRole matches a stored group name case-insensitively.
func ParseRole(name string) (Role, bool) {
	for _, r := range []Role{RoleAdmin, RoleManager, RoleDeliveryCrew, RoleCustomer} {
		if strings.EqualFold(strings.TrimSpace(name), string(r)) {
			return r, true
		}
	}
	return "", false
}

// Roles is the set of group memberships of one user.
type Roles []Role

func NewRoles(roles ...Role) Roles {
	out := make(Roles, 0, len(roles))
	for _, r := range roles {
		if !out.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports Admin or Manager membership.
func (rs Roles) IsStaff() bool {
	return rs.Has(RoleAdmin) || rs.Has(RoleManager)
}
