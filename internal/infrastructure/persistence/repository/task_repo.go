// Package repository implements the persistence ports over sqlite. Tasks
// own four ordered sub-sequences (sessions, status history, comments,
// watchers) held in child tables; autoincrement row ids preserve insertion
// order under concurrent appenders, and the time-tracking exclusivity check
// is a conditional update on the tasks row itself.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
	"github.com/adnan4498/infinitum-crm-server/pkg/database"
)

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `
	id, title, description, assigned_to, assigned_by, status, priority,
	due_date, start_date, completed_date, estimated_hours,
	total_time_seconds, tracking_active, session_start,
	category, tags, custom_fields, created_at, updated_at
`

// Create inserts a new task row.
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	tags, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	customFields, err := json.Marshal(task.CustomFields)
	if err != nil {
		return fmt.Errorf("failed to encode custom fields: %w", err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.AssignedTo,
		task.AssignedBy,
		string(task.Status),
		string(task.Priority),
		task.DueDate,
		nullTime(task.StartDate),
		nullTime(task.CompletedDate),
		nullFloat(task.EstimatedHours),
		task.TimeTracking.TotalTimeSeconds,
		task.TimeTracking.IsActive,
		nullTime(task.TimeTracking.CurrentSessionStart),
		task.Category,
		string(tags),
		string(customFields),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create task",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves a task with all its sub-sequences. Returns (nil, nil)
// when the task does not exist.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID",
			zap.String("task_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if err := r.loadChildren(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Update persists the mutable task columns. Sub-sequences are append-only
// and go through their own methods.
func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	tags, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	customFields, err := json.Marshal(task.CustomFields)
	if err != nil {
		return fmt.Errorf("failed to encode custom fields: %w", err)
	}

	query := `
		UPDATE tasks SET
			title = ?, description = ?, assigned_to = ?, status = ?,
			priority = ?, due_date = ?, start_date = ?, completed_date = ?,
			estimated_hours = ?, category = ?, tags = ?, custom_fields = ?,
			updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.AssignedTo,
		string(task.Status),
		string(task.Priority),
		task.DueDate,
		nullTime(task.StartDate),
		nullTime(task.CompletedDate),
		nullFloat(task.EstimatedHours),
		task.Category,
		string(tags),
		string(customFields),
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &entity.NotFoundError{Resource: "task", ID: task.ID}
	}
	return nil
}

// Delete removes the task row; child rows cascade.
func (r *TaskRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete task",
			zap.String("task_id", id),
			zap.Error(err))
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// List returns one page of matching task rows. Sub-sequences are not
// loaded for listings.
func (r *TaskRepository) List(ctx context.Context, filter port.TaskFilter, page port.TaskPage) ([]*entity.Task, error) {
	where, args := buildWhere(filter)

	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		" ORDER BY " + sortClause(page) + " LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Count returns the number of tasks matching the filter.
func (r *TaskRepository) Count(ctx context.Context, filter port.TaskFilter) (int64, error) {
	where, args := buildWhere(filter)

	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count tasks", zap.Error(err))
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// Stats aggregates matching tasks by effective status and priority plus the
// overdue and active-tracking counts. The overdue grouping applies the
// derived definition in SQL so stored and derived overdue tasks count once.
func (r *TaskRepository) Stats(ctx context.Context, filter port.TaskFilter) (*port.TaskStats, error) {
	where, args := buildWhere(filter)
	now := filterNow(filter)

	stats := &port.TaskStats{
		ByStatus:   make(map[entity.Status]int64),
		ByPriority: make(map[entity.Priority]int64),
	}

	summary := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN due_date < ? AND status NOT IN ('completed', 'cancelled') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN tracking_active = 1 THEN 1 ELSE 0 END), 0)
		FROM tasks` + where
	summaryArgs := append([]interface{}{now}, args...)
	if err := r.db.QueryRowContext(ctx, summary, summaryArgs...).Scan(&stats.Total, &stats.Overdue, &stats.ActiveTracking); err != nil {
		r.logger.Error("Failed to compute task summary stats", zap.Error(err))
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	byStatus := `
		SELECT CASE WHEN due_date < ? AND status NOT IN ('completed', 'cancelled')
			THEN 'overdue' ELSE status END AS effective_status, COUNT(*)
		FROM tasks` + where + ` GROUP BY effective_status`
	rows, err := r.db.QueryContext(ctx, byStatus, summaryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to group by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status group: %w", err)
		}
		stats.ByStatus[entity.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byPriority := `SELECT priority, COUNT(*) FROM tasks` + where + ` GROUP BY priority`
	prows, err := r.db.QueryContext(ctx, byPriority, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group by priority: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var priority string
		var count int64
		if err := prows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("failed to scan priority group: %w", err)
		}
		stats.ByPriority[entity.Priority(priority)] = count
	}
	return stats, prows.Err()
}

// StartSession atomically flips the tracker to active. The WHERE clause is
// the exclusivity gate: a concurrent start finds tracking_active already 1
// and affects no rows.
func (r *TaskRepository) StartSession(ctx context.Context, taskID string, start time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET tracking_active = 1, session_start = ?, updated_at = ?
		WHERE id = ? AND tracking_active = 0
	`, start, start, taskID)
	if err != nil {
		r.logger.Error("Failed to start session",
			zap.String("task_id", taskID),
			zap.Error(err))
		return fmt.Errorf("failed to start session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM tasks WHERE id = ?)", taskID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check task existence: %w", err)
		}
		if !exists {
			return &entity.NotFoundError{Resource: "task", ID: taskID}
		}
		return entity.ErrAlreadyActive
	}
	return nil
}

// StopSession clears the tracker, appends the session record and
// accumulates its duration, all in one transaction. The conditional update
// keeps two concurrent stops from both recording a session.
func (r *TaskRepository) StopSession(ctx context.Context, taskID string, end time.Time, notes string) (*entity.Session, error) {
	var session *entity.Session

	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		var start time.Time
		err := tx.QueryRowContext(ctx,
			"SELECT session_start FROM tasks WHERE id = ? AND tracking_active = 1", taskID,
		).Scan(&start)
		if err == sql.ErrNoRows {
			return entity.ErrNoActiveSession
		}
		if err != nil {
			return fmt.Errorf("failed to read session start: %w", err)
		}

		duration := int64(end.Sub(start).Seconds())
		if duration < 0 {
			duration = 0
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE tasks SET tracking_active = 0, session_start = NULL,
				total_time_seconds = total_time_seconds + ?, updated_at = ?
			WHERE id = ? AND tracking_active = 1
		`, duration, end, taskID)
		if err != nil {
			return fmt.Errorf("failed to clear tracker: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if affected == 0 {
			return entity.ErrNoActiveSession
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO task_sessions (task_id, started_at, ended_at, duration_seconds, notes)
			VALUES (?, ?, ?, ?, ?)
		`, taskID, start, end, duration, notes)
		if err != nil {
			return fmt.Errorf("failed to append session: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get session id: %w", err)
		}

		session = &entity.Session{
			ID:              id,
			StartedAt:       start,
			EndedAt:         end,
			DurationSeconds: duration,
			Notes:           notes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// AppendStatusHistory appends one audit record for a status change.
func (r *TaskRepository) AppendStatusHistory(ctx context.Context, taskID string, change entity.StatusChange) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_status_history (task_id, status, changed_by, changed_at, reason)
		VALUES (?, ?, ?, ?, ?)
	`, taskID, string(change.Status), change.ChangedBy, change.ChangedAt, change.Reason)
	if err != nil {
		r.logger.Error("Failed to append status history",
			zap.String("task_id", taskID),
			zap.Error(err))
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// AppendComment appends one comment and sets its row id.
func (r *TaskRepository) AppendComment(ctx context.Context, taskID string, comment *entity.Comment) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO task_comments (task_id, author_id, message, created_at)
		VALUES (?, ?, ?, ?)
	`, taskID, comment.AuthorID, comment.Message, comment.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append comment",
			zap.String("task_id", taskID),
			zap.Error(err))
		return fmt.Errorf("failed to append comment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get comment id: %w", err)
	}
	comment.ID = id
	return nil
}

// AddWatcher adds a watcher; concurrent and repeated adds are no-ops.
func (r *TaskRepository) AddWatcher(ctx context.Context, taskID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO task_watchers (task_id, user_id) VALUES (?, ?)",
		taskID, userID)
	if err != nil {
		r.logger.Error("Failed to add watcher",
			zap.String("task_id", taskID),
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to add watcher: %w", err)
	}
	return nil
}

func (r *TaskRepository) loadChildren(ctx context.Context, task *entity.Task) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, duration_seconds, notes
		FROM task_sessions WHERE task_id = ? ORDER BY id
	`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s entity.Session
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.EndedAt, &s.DurationSeconds, &s.Notes); err != nil {
			return fmt.Errorf("failed to scan session: %w", err)
		}
		task.TimeTracking.Sessions = append(task.TimeTracking.Sessions, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	hrows, err := r.db.QueryContext(ctx, `
		SELECT id, status, changed_by, changed_at, reason
		FROM task_status_history WHERE task_id = ? ORDER BY id
	`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to load status history: %w", err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var c entity.StatusChange
		var status string
		if err := hrows.Scan(&c.ID, &status, &c.ChangedBy, &c.ChangedAt, &c.Reason); err != nil {
			return fmt.Errorf("failed to scan status change: %w", err)
		}
		c.Status = entity.Status(status)
		task.StatusHistory = append(task.StatusHistory, c)
	}
	if err := hrows.Err(); err != nil {
		return err
	}

	crows, err := r.db.QueryContext(ctx, `
		SELECT id, author_id, message, created_at
		FROM task_comments WHERE task_id = ? ORDER BY id
	`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var c entity.Comment
		if err := crows.Scan(&c.ID, &c.AuthorID, &c.Message, &c.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		task.Comments = append(task.Comments, c)
	}
	if err := crows.Err(); err != nil {
		return err
	}

	wrows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM task_watchers WHERE task_id = ? ORDER BY user_id", task.ID)
	if err != nil {
		return fmt.Errorf("failed to load watchers: %w", err)
	}
	defer wrows.Close()
	for wrows.Next() {
		var userID string
		if err := wrows.Scan(&userID); err != nil {
			return fmt.Errorf("failed to scan watcher: %w", err)
		}
		task.Watchers = append(task.Watchers, userID)
	}
	return wrows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*entity.Task, error) {
	var task entity.Task
	var status, priority, tags, customFields string
	var startDate, completedDate, sessionStart sql.NullTime
	var estimatedHours sql.NullFloat64

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.AssignedTo,
		&task.AssignedBy,
		&status,
		&priority,
		&task.DueDate,
		&startDate,
		&completedDate,
		&estimatedHours,
		&task.TimeTracking.TotalTimeSeconds,
		&task.TimeTracking.IsActive,
		&sessionStart,
		&task.Category,
		&tags,
		&customFields,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = entity.Status(status)
	task.Priority = entity.Priority(priority)
	if startDate.Valid {
		task.StartDate = &startDate.Time
	}
	if completedDate.Valid {
		task.CompletedDate = &completedDate.Time
	}
	if sessionStart.Valid {
		task.TimeTracking.CurrentSessionStart = &sessionStart.Time
	}
	if estimatedHours.Valid {
		task.EstimatedHours = &estimatedHours.Float64
	}
	if err := json.Unmarshal([]byte(tags), &task.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	task.CustomFields = make(map[string]string)
	if err := json.Unmarshal([]byte(customFields), &task.CustomFields); err != nil {
		return nil, fmt.Errorf("failed to decode custom fields: %w", err)
	}
	return &task, nil
}

// buildWhere translates a filter into a WHERE clause. Status criteria match
// the effective status: the derived overdue definition is inlined so a
// pending task past its due date matches "overdue", not "pending".
func buildWhere(filter port.TaskFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	now := filterNow(filter)

	switch {
	case filter.ScopeAssignee != "":
		conds = append(conds, "assigned_to = ?")
		args = append(args, filter.ScopeAssignee)
	case filter.ScopeParticipant != "":
		conds = append(conds, "(assigned_to = ? OR assigned_by = ?)")
		args = append(args, filter.ScopeParticipant, filter.ScopeParticipant)
	}

	switch filter.Status {
	case "":
	case entity.StatusOverdue:
		conds = append(conds, "due_date < ? AND status NOT IN ('completed', 'cancelled')")
		args = append(args, now)
	case entity.StatusCompleted, entity.StatusCancelled:
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	default:
		conds = append(conds, "status = ? AND due_date >= ?")
		args = append(args, string(filter.Status), now)
	}

	if filter.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.AssignedTo != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.AssignedBy != "" {
		conds = append(conds, "assigned_by = ?")
		args = append(args, filter.AssignedBy)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if filter.CreatedFrom != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *filter.CreatedTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// sortColumns whitelists client-supplied sort fields.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
	"priority":   "priority",
	"status":     "status",
	"title":      "title",
}

func sortClause(page port.TaskPage) string {
	column, ok := sortColumns[page.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(page.SortOrder, "asc") {
		direction = "ASC"
	}
	return column + " " + direction
}

func filterNow(filter port.TaskFilter) time.Time {
	if filter.Now.IsZero() {
		return time.Now()
	}
	return filter.Now
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
