// Package policy decides which callers may perform which task and user
// operations. Decisions are pure functions of the caller, the action and
// the owner of the target resource.
package policy

import "taskhub/internal/domain"

// Action names an operation subject to authorization.
type Action string

const (
	ActionCreateTask   Action = "task.create"
	ActionReadOwnTasks Action = "task.read_own"
	ActionReadAllTasks Action = "task.read_all"
	ActionUpdateTask   Action = "task.update"
	ActionDeleteTask   Action = "task.delete"
	ActionExportTasks  Action = "task.export"
	ActionListUsers    Action = "user.list"
	ActionUpdateUser   Action = "user.update"
	ActionDeleteUser   Action = "user.delete"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Decide evaluates action for caller against the resource owned by ownerID.
// ownerID is ignored by actions that do not target a single resource; for
// user actions it is the target user's id.
func Decide(caller domain.Caller, action Action, ownerID int64) Decision {
	if caller.UserID <= 0 {
		return deny("unauthenticated")
	}
	isOwner := caller.UserID == ownerID

	switch action {
	case ActionCreateTask, ActionExportTasks, ActionListUsers:
		return allow("authenticated")
	case ActionReadOwnTasks, ActionUpdateTask, ActionDeleteTask, ActionUpdateUser:
		if isOwner {
			return allow("owner")
		}
		return deny("not owner")
	case ActionReadAllTasks:
		if caller.IsAdmin() {
			return allow("admin")
		}
		return deny("admin role required")
	case ActionDeleteUser:
		if isOwner {
			return allow("owner")
		}
		if caller.IsAdmin() {
			return allow("admin")
		}
		return deny("not owner or admin")
	default:
		return deny("unknown action")
	}
}

// TaskListScope returns the widest task filter caller may list: every task
// for an admin, otherwise only the caller's own.
func TaskListScope(caller domain.Caller) domain.TaskFilter {
	if Decide(caller, ActionReadAllTasks, 0).Allowed {
		return domain.TaskFilter{All: true}
	}
	return domain.TaskFilter{OwnerID: caller.UserID}
}
