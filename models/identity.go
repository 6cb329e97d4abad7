package models

import "github.com/google/uuid"

// Role is the caller's role as asserted by the authentication layer.
type Role string

const (
	RoleStudent    Role = "student"
	RoleMentor     Role = "mentor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole maps a raw header or claim value onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleStudent, RoleMentor, RoleAdmin, RoleSuperAdmin:
		return r, true
	}
	return "", false
}

// Identity is the authenticated caller of a mutating operation.
type Identity struct {
	UserID uuid.UUID
	Role   Role
	Email  string
}
