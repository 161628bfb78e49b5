package models

import "strings"

// Role is the access tier of an account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePremium Role = "premium"
	RoleFree    Role = "free"
)

// Roles lists every valid tier.
var Roles = []Role{RoleAdmin, RolePremium, RoleFree}

// ParseRole normalizes s and reports whether it names a known tier.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the enumerated tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePremium, RoleFree:
		return true
	}
	return false
}

// Identity is the caller as described by a decoded session token.
type Identity struct {
	AccountID string `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the admin tier.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
