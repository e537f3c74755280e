// Package authz implements the role/relationship permission matrix applied
// to every mutating task operation. The policy is a pure function over the
// principal, the requested action and the principal's relationship to the
// target task; it holds no state and touches no storage.
package authz

import (
	"fmt"

	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

// Action is an operation requested against a task.
type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionComplete Action = "complete"
	ActionComment  Action = "comment"
)

// Relationship captures how the principal relates to the target task.
type Relationship struct {
	IsAssignee bool
	IsAssigner bool
}

// Decision is the policy outcome. Reason carries a machine-readable
// explanation when the request is denied.
type Decision struct {
	Allowed bool
	Reason  string
}

// updatableByEmployee is the field whitelist for a plain Employee's update
// request. Any field outside this set denies the whole request.
var updatableByEmployee = map[string]bool{
	"status":  true,
	"comment": true,
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Authorize evaluates the decision table for one request. fields is the set
// of field names present in an update request body; it is ignored for all
// other actions.
func Authorize(p entity.Principal, action Action, rel Relationship, fields []string) Decision {
	switch action {
	case ActionStart, ActionStop, ActionComplete:
		// Assignee-only regardless of role or designation
		if !rel.IsAssignee {
			return deny("only the assignee may start, stop or complete a task")
		}
		return allow()

	case ActionCreate:
		if p.IsManager() || p.PMDesignation {
			return allow()
		}
		return deny("employees without a project manager designation cannot create tasks")

	case ActionDelete:
		if p.IsManager() {
			return allow()
		}
		if p.PMDesignation {
			if rel.IsAssigner {
				return allow()
			}
			return deny("designated employees may only delete tasks they created")
		}
		return deny("employees cannot delete tasks")

	case ActionRead, ActionUpdate, ActionComment:
		if !inScope(p, rel) {
			return deny(scopeReason(p))
		}
		if action == ActionUpdate && !p.IsManager() && !p.PMDesignation {
			for _, f := range fields {
				if !updatableByEmployee[f] {
					return deny(fmt.Sprintf("employees may only update status and comments, got %q", f))
				}
			}
		}
		return allow()

	default:
		return deny(fmt.Sprintf("unknown action %q", action))
	}
}

// inScope reports whether the principal may see the target task at all.
func inScope(p entity.Principal, rel Relationship) bool {
	if p.IsManager() {
		return true
	}
	if p.PMDesignation {
		return rel.IsAssignee || rel.IsAssigner
	}
	return rel.IsAssignee
}

func scopeReason(p entity.Principal) string {
	if p.PMDesignation {
		return "task is neither assigned to nor created by the requester"
	}
	return "task is not assigned to the requester"
}
