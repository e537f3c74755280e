package lifecycle

import "github.com/adnan4498/infinitum-crm-server/internal/domain/entity"

// NewTaskStateMachine builds the task lifecycle machine positioned at the
// given stored status.
//
//	pending     -> in_progress | completed | cancelled
//	in_progress -> completed | cancelled
//	overdue     -> in_progress | completed | cancelled
//
// A stored overdue status only occurs when a client set it explicitly; the
// derived overdue view never enters the machine. Completed and cancelled
// are terminal.
func NewTaskStateMachine(current entity.Status) StateMachine {
	b := NewBuilder()

	b.Configure(entity.StatusPending).
		Permit(TriggerStart, entity.StatusInProgress).
		Permit(TriggerComplete, entity.StatusCompleted).
		Permit(TriggerCancel, entity.StatusCancelled)

	b.Configure(entity.StatusInProgress).
		Permit(TriggerComplete, entity.StatusCompleted).
		Permit(TriggerCancel, entity.StatusCancelled)

	b.Configure(entity.StatusOverdue).
		Permit(TriggerStart, entity.StatusInProgress).
		Permit(TriggerComplete, entity.StatusCompleted).
		Permit(TriggerCancel, entity.StatusCancelled)

	return b.Build(current)
}
