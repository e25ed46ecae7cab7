package rbac

import "fmt"

// Action names a protected operation.
type Action string

const (
	ActionIssueRead       Action = "issue.read"
	ActionIssueUpdate     Action = "issue.update"
	ActionIssueTransition Action = "issue.transition"
	ActionIssueDelete     Action = "issue.delete"

	ActionCommentUpdate Action = "comment.update"
	ActionCommentDelete Action = "comment.delete"

	ActionAttachmentDelete Action = "attachment.delete"

	ActionUserList   Action = "user.list"
	ActionUserCreate Action = "user.create"
	ActionUserRead   Action = "user.read"
	ActionUserUpdate Action = "user.update"
	ActionUserDelete Action = "user.delete"

	ActionStatsRecompute Action = "stats.recompute"
)

// rule is one row of the policy table: anyMin is the role required
// regardless of ownership, ownerMin the (lower) role sufficient when the
// actor owns the resource. A zero ownerMin means ownership grants nothing.
type rule struct {
	anyMin   Role
	ownerMin Role
}

var policy = map[Action]rule{
	ActionIssueRead:   {anyMin: RoleMaintainer, ownerMin: RoleReporter},
	ActionIssueUpdate: {anyMin: RoleMaintainer, ownerMin: RoleReporter},
	// The dedicated status endpoint is never ownership-based: a Reporter
	// is denied even on their own issue.
	ActionIssueTransition: {anyMin: RoleMaintainer},
	ActionIssueDelete:     {anyMin: RoleAdmin},

	ActionCommentUpdate: {anyMin: RoleAdmin, ownerMin: RoleReporter},
	ActionCommentDelete: {anyMin: RoleAdmin, ownerMin: RoleReporter},

	ActionAttachmentDelete: {anyMin: RoleMaintainer, ownerMin: RoleReporter},

	ActionUserList:   {anyMin: RoleAdmin},
	ActionUserCreate: {anyMin: RoleAdmin},
	ActionUserRead:   {anyMin: RoleAdmin},
	// Self-service profile updates are allowed; the usecase separately
	// rejects self role changes and self deletion.
	ActionUserUpdate: {anyMin: RoleAdmin, ownerMin: RoleReporter},
	ActionUserDelete: {anyMin: RoleAdmin},

	ActionStatsRecompute: {anyMin: RoleAdmin},
}

// Decide evaluates the policy table: nil means allow, ErrForbidden means
// the whole operation must be rejected (denial never silently filters).
func Decide(role Role, action Action, owned bool) error {
	r, ok := policy[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrForbidden, action)
	}

	if role.Satisfies(r.anyMin) {
		return nil
	}
	if owned && r.ownerMin != "" && role.Satisfies(r.ownerMin) {
		return nil
	}
	return fmt.Errorf("%w: role %s may not perform %s", ErrForbidden, role, action)
}

// ListScope is the one place where RBAC narrows instead of denying:
// Reporters list only their own issues, Maintainer and above list all.
type ListScope int

const (
	ScopeOwn ListScope = iota
	ScopeAll
)

func IssueListScope(role Role) ListScope {
	if role.Satisfies(RoleMaintainer) {
		return ScopeAll
	}
	return ScopeOwn
}
