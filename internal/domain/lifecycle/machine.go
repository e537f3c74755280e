// Package lifecycle implements the task status state machine. Transitions
// are configured once through a builder and evaluated per task; the derived
// overdue status is not a machine state and is computed by the entity.
package lifecycle

import (
	"context"

	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

// StateMachine tracks a current status and validates transitions.
type StateMachine interface {
	// State returns the current status
	State() entity.Status

	// CanFire returns true if the trigger is permitted in the current status
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new status if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current status
	PermittedTriggers() []Trigger
}
