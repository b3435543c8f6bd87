package grid

import (
	"fmt"
	"strings"
)

// Role names a privilege granted to a capability holder.
type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// ParseRole resolves a role name.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleOperator:
		return RoleOperator, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// Capability is the proof of privilege passed into gated operations. The
// service layer mints one after verifying the caller's credentials; the engine
// never consults ambient permission state.
type Capability struct {
	Subject string
	roles   map[Role]struct{}
}

// NewCapability grants roles to subject.
func NewCapability(subject string, roles ...Role) Capability {
	set := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return Capability{Subject: subject, roles: set}
}

// Allows reports whether the capability carries role. Admin implies operator.
func (c Capability) Allows(role Role) bool {
	if _, ok := c.roles[role]; ok {
		return true
	}
	if role == RoleOperator {
		_, ok := c.roles[RoleAdmin]
		return ok
	}
	return false
}

// Roles lists the granted roles in a stable order.
func (c Capability) Roles() []Role {
	out := make([]Role, 0, len(c.roles))
	for _, r := range []Role{RoleAdmin, RoleOperator} {
		if _, ok := c.roles[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

func requireRole(c Capability, role Role) error {
	if !c.Allows(role) {
		return fmt.Errorf("%w: %s role required", ErrUnauthorized, role)
	}
	return nil
}
