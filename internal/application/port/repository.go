package port

import (
	"context"
	"time"

	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

// TaskFilter narrows task listings. Status is matched against the effective
// status (the derived overdue view), not the stored column. Scope fields are
// filled by the query layer from the principal's role before user filters
// apply and must not be exposed to callers.
type TaskFilter struct {
	Status     entity.Status
	Priority   entity.Priority
	AssignedTo string
	AssignedBy string

	// Search is a case-insensitive substring matched against title OR
	// description.
	Search string

	// Inclusive creation-date bounds, each side independent.
	CreatedFrom *time.Time
	CreatedTo   *time.Time

	// ScopeAssignee restricts results to tasks assigned to the given user.
	ScopeAssignee string
	// ScopeParticipant restricts results to tasks assigned to OR created by
	// the given user. Ignored when ScopeAssignee is set.
	ScopeParticipant string

	// Now anchors the derived overdue evaluation; zero means time.Now at
	// the storage layer.
	Now time.Time
}

// TaskPage selects sorting and pagination for a listing.
type TaskPage struct {
	SortBy    string
	SortOrder string
	Offset    int
	Limit     int
}

// TaskStats aggregates tasks matching a filter.
type TaskStats struct {
	Total          int64                     `json:"total"`
	ByStatus       map[entity.Status]int64   `json:"by_status"`
	ByPriority     map[entity.Priority]int64 `json:"by_priority"`
	Overdue        int64                     `json:"overdue"`
	ActiveTracking int64                     `json:"active_tracking"`
}

// TaskRepository defines persistence operations for tasks. GetByID returns
// (nil, nil) when the task does not exist.
//
// StartSession and StopSession implement the time-tracking exclusivity
// contract: the active-flag check and the write are a single conditional
// update, so two concurrent starts against one task cannot both succeed.
// Sub-sequence appends preserve insertion order under concurrent appenders.
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id string) (*entity.Task, error)
	Update(ctx context.Context, task *entity.Task) error
	Delete(ctx context.Context, id string) (bool, error)

	List(ctx context.Context, filter TaskFilter, page TaskPage) ([]*entity.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int64, error)
	Stats(ctx context.Context, filter TaskFilter) (*TaskStats, error)

	// StartSession atomically flips the tracker to active. Returns
	// entity.ErrAlreadyActive when a session is already running.
	StartSession(ctx context.Context, taskID string, start time.Time) error

	// StopSession atomically clears the tracker, appends the session record
	// and accumulates its duration. Returns entity.ErrNoActiveSession when
	// no session is running.
	StopSession(ctx context.Context, taskID string, end time.Time, notes string) (*entity.Session, error)

	AppendStatusHistory(ctx context.Context, taskID string, change entity.StatusChange) error
	AppendComment(ctx context.Context, taskID string, comment *entity.Comment) error

	// AddWatcher is idempotent; adding an existing watcher is a no-op.
	AddWatcher(ctx context.Context, taskID, userID string) error
}

// UserRepository resolves user identities for assignment validation and
// authentication.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Create(ctx context.Context, user *entity.User) error
}
