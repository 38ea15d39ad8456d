package models

import "strings"

// Role identifies the portal actor kind used for workflow gating.
type Role string

const (
	RoleLecturer        Role = "LECTURER"
	RoleAcademicAffairs Role = "ACADEMIC_AFFAIRS"
	RoleHOD             Role = "HOD"
	RoleRector          Role = "RECTOR"
	RoleAdmin           Role = "ADMIN"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleLecturer, RoleHOD, RoleAcademicAffairs, RoleRector, RoleAdmin}

// NormalizeRole maps raw role strings onto Role. Both "HOD" and "ROLE_HOD"
// spellings resolve to RoleHOD. Unknown values are returned uppercased so
// they never match a known role by accident.
func NormalizeRole(raw string) Role {
	value := strings.ToUpper(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "ROLE_")
	return Role(value)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}
