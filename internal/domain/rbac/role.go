// Package rbac implements the role model and the access-control policy.
// Roles are totally ordered; policy decisions are pure lookups over a
// declarative table keyed by (action, role, ownership).
package rbac

import (
	"fmt"
	"strings"
)

// Role is one of the three ordered privilege levels.
type Role string

const (
	RoleReporter   Role = "REPORTER"
	RoleMaintainer Role = "MAINTAINER"
	RoleAdmin      Role = "ADMIN"
)

var roleRank = map[Role]int{
	RoleReporter:   1,
	RoleMaintainer: 2,
	RoleAdmin:      3,
}

func Roles() []Role {
	return []Role{RoleReporter, RoleMaintainer, RoleAdmin}
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

func (r Role) String() string { return string(r) }

// Satisfies reports whether r carries at least the privileges of required.
// Unknown roles satisfy nothing.
func (r Role) Satisfies(required Role) bool {
	return roleRank[r] >= roleRank[required] && roleRank[required] > 0
}

// ParseRole accepts the canonical form case-insensitively.
func ParseRole(raw string) (Role, error) {
	candidate := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return candidate, nil
}
