// Package authz holds the role gate and the ownership and visibility rules
// applied on top of it. Everything here is a pure decision over an identity.
package authz

import "kalm/internal/models"

// FreeProductLimit is the number of products visible to free and anonymous callers.
const FreeProductLimit = 4

// RoleSet is the set of tiers a route accepts. An empty set marks a public route.
type RoleSet map[models.Role]struct{}

// Roles builds a RoleSet.
func Roles(roles ...models.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(r models.Role) bool {
	_, ok := s[r]
	return ok
}

var (
	Public        = Roles()
	Authenticated = Roles(models.RoleAdmin, models.RolePremium, models.RoleFree)
	Authors       = Roles(models.RoleAdmin, models.RolePremium)
	AdminOnly     = Roles(models.RoleAdmin)
)

// Reason explains a denial.
type Reason string

const (
	NoCredential     Reason = "no_credential"
	InsufficientRole Reason = "insufficient_role"
	NotOwner         Reason = "not_owner"
)

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Authorize checks id against the required tiers.
func Authorize(id *models.Identity, required RoleSet) Decision {
	if len(required) == 0 {
		return allow()
	}
	if id == nil {
		return deny(NoCredential)
	}
	if !required.Has(id.Role) {
		return deny(InsufficientRole)
	}
	return allow()
}

// CanModifyOwned is the second-stage check for owned resources: admins may
// modify anything, everyone else only what they own.
func CanModifyOwned(id *models.Identity, ownerID string) Decision {
	if id == nil {
		return deny(NoCredential)
	}
	if id.IsAdmin() || (ownerID != "" && id.AccountID == ownerID) {
		return allow()
	}
	return deny(NotOwner)
}

// EffectiveRole is the tier used for visibility decisions; anonymous callers count as free.
func EffectiveRole(id *models.Identity) models.Role {
	if id == nil || !id.Role.Valid() {
		return models.RoleFree
	}
	return id.Role
}

// ProductLimit returns how many listing results the caller may see, 0 meaning all.
func ProductLimit(id *models.Identity) int {
	if EffectiveRole(id) == models.RoleFree {
		return FreeProductLimit
	}
	return 0
}
