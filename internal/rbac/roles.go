package rbac

import "telecaller-platform/internal/workers"

// Role names mirror worker roles; they are part of the auth contract.
const (
	RoleAdmin      = string(workers.RoleAdmin)
	RoleSupervisor = string(workers.RoleSupervisor)
	RoleTelecaller = string(workers.RoleTelecaller)
)

// ParseRole maps a token role claim onto a worker role.
func ParseRole(s string) (workers.Role, bool) {
	switch r := workers.Role(s); r {
	case workers.RoleAdmin, workers.RoleSupervisor, workers.RoleTelecaller:
		return r, true
	default:
		return "", false
	}
}

func IsAdmin(role string) bool { return role == RoleAdmin }

// SeesAllCalls reports whether role may read and amend calls owned by other workers.
func SeesAllCalls(role string) bool {
	return role == RoleAdmin || role == RoleSupervisor
}
