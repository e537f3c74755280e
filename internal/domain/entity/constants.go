package entity

// Status represents the stored lifecycle status of a task.
// Overdue is normally derived from the due date (see Task.EffectiveStatus);
// it is only stored when a client sets it explicitly through an update.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusOverdue    Status = "overdue"
)

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
	StatusOverdue:    true,
}

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusCancelled: true,
}

// IsValid returns true if the status is a known task status.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Priority represents task priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var validPriorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// IsValid returns true if the priority is a known priority level.
func (p Priority) IsValid() bool {
	return validPriorities[p]
}

// Role represents the role of a principal.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleEmployee       Role = "employee"
)

// Notification type and action constants
const (
	NotificationTypeTask = "task"

	NotificationActionAssigned      = "assigned"
	NotificationActionStatusChanged = "status_changed"
	NotificationActionCommented     = "commented"
)

// Default history reasons recorded by lifecycle operations
const (
	ReasonStatusUpdated = "Status updated"
	ReasonTaskStarted   = "Task started"
	ReasonTaskCompleted = "Task completed"
)
