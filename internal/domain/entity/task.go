package entity

import (
	"strings"
	"time"
)

// Task is the aggregate tracked by the engine. It is owned exclusively by
// the task services; notifications and reports reference it by id only.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// User references by id, no embedded copies
	AssignedTo string `json:"assigned_to"`
	AssignedBy string `json:"assigned_by"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	DueDate        time.Time  `json:"due_date"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	CompletedDate  *time.Time `json:"completed_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`

	TimeTracking  TimeTracking    `json:"time_tracking"`
	StatusHistory []StatusChange  `json:"status_history"`
	Comments      []Comment       `json:"comments"`
	Watchers      []string        `json:"watchers"`

	Category     string            `json:"category,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimeTracking holds the single-active-session tracker state.
// Invariant: IsActive == true iff CurrentSessionStart is set.
// Invariant: TotalTimeSeconds == sum of DurationSeconds over Sessions.
type TimeTracking struct {
	TotalTimeSeconds    int64      `json:"total_time_seconds"`
	Sessions            []Session  `json:"sessions"`
	IsActive            bool       `json:"is_active"`
	CurrentSessionStart *time.Time `json:"current_session_start,omitempty"`
}

// Session is one contiguous start-to-stop interval of tracked work time.
type Session struct {
	ID              int64     `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int64     `json:"duration_seconds"`
	Notes           string    `json:"notes,omitempty"`
}

// StatusChange is one append-only audit record of a status transition.
type StatusChange struct {
	ID        int64     `json:"id"`
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Reason    string    `json:"reason,omitempty"`
}

// Comment is one append-only comment on a task.
type Comment struct {
	ID        int64     `json:"id"`
	AuthorID  string    `json:"author_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask constructs a task in its initial state. Every task gets its own
// CustomFields map; maps are never shared between instances.
func NewTask(id, title, description, assignedTo, assignedBy string, priority Priority, dueDate time.Time, now time.Time) *Task {
	return &Task{
		ID:           id,
		Title:        title,
		Description:  description,
		AssignedTo:   assignedTo,
		AssignedBy:   assignedBy,
		Status:       StatusPending,
		Priority:     priority,
		DueDate:      dueDate,
		CustomFields: make(map[string]string),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// EffectiveStatus returns the status observed by readers: Overdue when the
// due date has passed and no terminal status was reached, otherwise the
// stored status. Overdue is derived on demand, never swept into storage.
func (t *Task) EffectiveStatus(now time.Time) Status {
	if t.IsOverdue(now) {
		return StatusOverdue
	}
	return t.Status
}

// IsOverdue reports whether the task is past due and not terminal.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate.Before(now) && !t.Status.IsTerminal()
}

// HoursSpent returns the accumulated tracked time in hours.
func (t *Task) HoursSpent() float64 {
	return float64(t.TimeTracking.TotalTimeSeconds) / 3600.0
}

// DaysUntilDue returns the number of whole days until the due date,
// negative when the due date has passed.
func (t *Task) DaysUntilDue(now time.Time) int {
	return int(t.DueDate.Sub(now).Hours() / 24)
}

// HasWatcher reports whether the user already watches the task.
func (t *Task) HasWatcher(userID string) bool {
	for _, w := range t.Watchers {
		if w == userID {
			return true
		}
	}
	return false
}

// NormalizeTags trims, lower-cases and de-duplicates a tag list while
// preserving first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
