package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/authz"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/lifecycle"
	"github.com/adnan4498/infinitum-crm-server/pkg/utils"
)

// CreateTaskRequest carries the fields accepted on task creation.
type CreateTaskRequest struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	AssignedTo     string            `json:"assigned_to"`
	Priority       entity.Priority   `json:"priority"`
	DueDate        time.Time         `json:"due_date"`
	EstimatedHours *float64          `json:"estimated_hours"`
	Category       string            `json:"category"`
	Tags           []string          `json:"tags"`
	CustomFields   map[string]string `json:"custom_fields"`
}

// UpdateTaskRequest carries a partial field set; nil pointers mean the field
// was absent from the request.
type UpdateTaskRequest struct {
	Title          *string           `json:"title"`
	Description    *string           `json:"description"`
	AssignedTo     *string           `json:"assigned_to"`
	Priority       *entity.Priority  `json:"priority"`
	Status         *entity.Status    `json:"status"`
	DueDate        *time.Time        `json:"due_date"`
	EstimatedHours *float64          `json:"estimated_hours"`
	Category       *string           `json:"category"`
	Tags           []string          `json:"tags"`
	CustomFields   map[string]string `json:"custom_fields"`
	Comment        *string           `json:"comment"`
}

// Fields returns the names of the fields present in the request, used by
// the authorization policy's per-role update whitelist.
func (r UpdateTaskRequest) Fields() []string {
	var fields []string
	add := func(present bool, name string) {
		if present {
			fields = append(fields, name)
		}
	}
	add(r.Title != nil, "title")
	add(r.Description != nil, "description")
	add(r.AssignedTo != nil, "assigned_to")
	add(r.Priority != nil, "priority")
	add(r.Status != nil, "status")
	add(r.DueDate != nil, "due_date")
	add(r.EstimatedHours != nil, "estimated_hours")
	add(r.Category != nil, "category")
	add(r.Tags != nil, "tags")
	add(r.CustomFields != nil, "custom_fields")
	add(r.Comment != nil, "comment")
	return fields
}

// TaskService manages the task lifecycle: creation, policy-checked field
// updates, completion, deletion, comments and watchers.
type TaskService interface {
	Create(ctx context.Context, p entity.Principal, req CreateTaskRequest) (*entity.Task, error)
	Get(ctx context.Context, p entity.Principal, id string) (*entity.Task, error)
	Update(ctx context.Context, p entity.Principal, id string, req UpdateTaskRequest) (*entity.Task, error)
	Complete(ctx context.Context, p entity.Principal, id string) (*entity.Task, error)
	Delete(ctx context.Context, p entity.Principal, id string) error
	AddComment(ctx context.Context, p entity.Principal, id, message string) (*entity.Task, error)
	AddWatcher(ctx context.Context, p entity.Principal, id string) (*entity.Task, error)
}

type taskServiceImpl struct {
	taskRepo port.TaskRepository
	userRepo port.UserRepository
	notifier Notifier
	logger   Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo port.TaskRepository, userRepo port.UserRepository, notifier Notifier, logger Logger) TaskService {
	return &taskServiceImpl{
		taskRepo: taskRepo,
		userRepo: userRepo,
		notifier: notifier,
		logger:   logger,
	}
}

// Create validates the request, checks the assignee is an active user and
// persists the task in its initial pending status. Creation appends no
// status history; history starts at the first transition.
func (s *taskServiceImpl) Create(ctx context.Context, p entity.Principal, req CreateTaskRequest) (*entity.Task, error) {
	if d := authz.Authorize(p, authz.ActionCreate, authz.Relationship{}, nil); !d.Allowed {
		return nil, &entity.ForbiddenError{Reason: d.Reason}
	}

	fields := make(map[string]string)
	if req.Title == "" {
		fields["title"] = "title is required"
	}
	if req.Description == "" {
		fields["description"] = "description is required"
	}
	if req.AssignedTo == "" {
		fields["assigned_to"] = "assignee is required"
	}
	if req.DueDate.IsZero() {
		fields["due_date"] = "due date is required"
	}
	if req.Priority == "" {
		req.Priority = entity.PriorityMedium
	} else if !req.Priority.IsValid() {
		fields["priority"] = fmt.Sprintf("unknown priority %q", req.Priority)
	}
	if req.EstimatedHours != nil && *req.EstimatedHours < 0 {
		fields["estimated_hours"] = "estimated hours must be non-negative"
	}
	if len(fields) > 0 {
		return nil, &entity.ValidationError{Fields: fields}
	}

	assignee, err := s.userRepo.GetByID(ctx, req.AssignedTo)
	if err != nil {
		s.logger.Error("Failed to look up assignee", "error", err, "user_id", req.AssignedTo)
		return nil, fmt.Errorf("look up assignee: %w", err)
	}
	if assignee == nil {
		return nil, entity.NewValidationError("assigned_to", "assignee does not exist")
	}
	if !assignee.IsActive {
		return nil, entity.NewValidationError("assigned_to", "assignee is not an active user")
	}

	now := time.Now()
	task := entity.NewTask(uuid.NewString(), req.Title, req.Description, req.AssignedTo, p.ID, req.Priority, req.DueDate, now)
	task.EstimatedHours = req.EstimatedHours
	task.Category = req.Category
	task.Tags = entity.NormalizeTags(req.Tags)
	for k, v := range req.CustomFields {
		task.CustomFields[k] = v
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		s.logger.Error("Failed to create task", "error", err, "assigned_to", req.AssignedTo)
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info("Task created", "task_id", task.ID, "assigned_to", task.AssignedTo, "assigned_by", task.AssignedBy)
	s.notifier.NotifyAssigned(task, p)

	return task, nil
}

// Get loads a task for a principal permitted to read it.
func (s *taskServiceImpl) Get(ctx context.Context, p entity.Principal, id string) (*entity.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(p, authz.ActionRead, relationship(p, task), nil); !d.Allowed {
		return nil, &entity.ForbiddenError{Reason: d.Reason}
	}
	return task, nil
}

// Update applies a policy-checked partial field set. A status among the
// updated fields transitions through the lifecycle machine and appends a
// history entry; no other field changes the status.
func (s *taskServiceImpl) Update(ctx context.Context, p entity.Principal, id string, req UpdateTaskRequest) (*entity.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(p, authz.ActionUpdate, relationship(p, task), req.Fields()); !d.Allowed {
		return nil, &entity.ForbiddenError{Reason: d.Reason}
	}

	now := time.Now()
	if req.Title != nil {
		if *req.Title == "" {
			return nil, entity.NewValidationError("title", "title cannot be empty")
		}
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.AssignedTo != nil {
		assignee, err := s.userRepo.GetByID(ctx, *req.AssignedTo)
		if err != nil {
			return nil, fmt.Errorf("look up assignee: %w", err)
		}
		if assignee == nil || !assignee.IsActive {
			return nil, entity.NewValidationError("assigned_to", "assignee must be an active user")
		}
		task.AssignedTo = *req.AssignedTo
	}
	if req.Priority != nil {
		if !req.Priority.IsValid() {
			return nil, entity.NewValidationError("priority", fmt.Sprintf("unknown priority %q", *req.Priority))
		}
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = *req.DueDate
	}
	if req.EstimatedHours != nil {
		if *req.EstimatedHours < 0 {
			return nil, entity.NewValidationError("estimated_hours", "estimated hours must be non-negative")
		}
		task.EstimatedHours = req.EstimatedHours
	}
	if req.Category != nil {
		task.Category = *req.Category
	}
	if req.Tags != nil {
		task.Tags = entity.NormalizeTags(req.Tags)
	}
	for k, v := range req.CustomFields {
		task.CustomFields[k] = v
	}

	statusChanged := false
	if req.Status != nil && *req.Status != task.Status {
		if err := s.transition(ctx, task, *req.Status, now); err != nil {
			return nil, err
		}
		statusChanged = true
	}

	task.UpdatedAt = now
	if err := s.taskRepo.Update(ctx, task); err != nil {
		s.logger.Error("Failed to update task", "error", err, "task_id", task.ID)
		return nil, fmt.Errorf("update task: %w", err)
	}

	if statusChanged {
		change := entity.StatusChange{Status: task.Status, ChangedBy: p.ID, ChangedAt: now, Reason: entity.ReasonStatusUpdated}
		if err := s.taskRepo.AppendStatusHistory(ctx, task.ID, change); err != nil {
			s.logger.Error("Failed to append status history", "error", err, "task_id", task.ID)
			return nil, fmt.Errorf("append status history: %w", err)
		}
		task.StatusHistory = append(task.StatusHistory, change)
		s.notifier.NotifyStatusChanged(task, p)
	}

	if req.Comment != nil && *req.Comment != "" {
		if _, err := s.appendComment(ctx, task, p, *req.Comment); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Task updated", "task_id", task.ID, "fields", req.Fields())
	return task, nil
}

// transition moves the stored status through the lifecycle machine and
// maintains the dates coupled to it. Invalid transitions surface as
// conflicts.
func (s *taskServiceImpl) transition(ctx context.Context, task *entity.Task, target entity.Status, now time.Time) error {
	if !target.IsValid() {
		return entity.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}
	if target == entity.StatusOverdue {
		return entity.NewValidationError("status", "overdue is derived from the due date and cannot be set")
	}

	var trigger lifecycle.Trigger
	switch target {
	case entity.StatusInProgress:
		trigger = lifecycle.TriggerStart
	case entity.StatusCompleted:
		trigger = lifecycle.TriggerComplete
	case entity.StatusCancelled:
		trigger = lifecycle.TriggerCancel
	default:
		return &entity.ConflictError{Err: fmt.Errorf("%w: no transition to %s", lifecycle.ErrInvalidTransition, target)}
	}

	sm := lifecycle.NewTaskStateMachine(task.Status)
	if err := sm.Fire(ctx, trigger); err != nil {
		return &entity.ConflictError{Err: err}
	}
	task.Status = sm.State()

	switch task.Status {
	case entity.StatusInProgress:
		if task.StartDate == nil {
			task.StartDate = &now
		}
	case entity.StatusCompleted:
		if task.TimeTracking.IsActive {
			session, err := s.taskRepo.StopSession(ctx, task.ID, now, entity.ReasonTaskCompleted)
			if err != nil {
				return fmt.Errorf("stop active session: %w", err)
			}
			applySession(task, session)
		}
		task.CompletedDate = &now
	}
	return nil
}

// Complete finishes a task from any non-terminal status, stopping an active
// time-tracking session first so the tracker invariants hold.
func (s *taskServiceImpl) Complete(ctx context.Context, p entity.Principal, id string) (*entity.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(p, authz.ActionComplete, relationship(p, task), nil); !d.Allowed {
		return nil, &entity.ForbiddenError{Reason: d.Reason}
	}

	now := time.Now()
	sm := lifecycle.NewTaskStateMachine(task.Status)
	if err := sm.Fire(ctx, lifecycle.TriggerComplete); err != nil {
		return nil, &entity.ConflictError{Err: err}
	}

	if task.TimeTracking.IsActive {
		session, err := s.taskRepo.StopSession(ctx, task.ID, now, entity.ReasonTaskCompleted)
		if err != nil {
			s.logger.Error("Failed to stop session on completion", "error", err, "task_id", task.ID)
			return nil, fmt.Errorf("stop active session: %w", err)
		}
		applySession(task, session)
	}

	task.Status = sm.State()
	task.CompletedDate = &now
	task.UpdatedAt = now
	if err := s.taskRepo.Update(ctx, task); err != nil {
		s.logger.Error("Failed to complete task", "error", err, "task_id", task.ID)
		return nil, fmt.Errorf("complete task: %w", err)
	}

	change := entity.StatusChange{Status: entity.StatusCompleted, ChangedBy: p.ID, ChangedAt: now, Reason: entity.ReasonTaskCompleted}
	if err := s.taskRepo.AppendStatusHistory(ctx, task.ID, change); err != nil {
		s.logger.Error("Failed to append status history", "error", err, "task_id", task.ID)
		return nil, fmt.Errorf("append status history: %w", err)
	}
	task.StatusHistory = append(task.StatusHistory, change)

	s.logger.Info("Task completed", "task_id", task.ID, "completed_by", p.ID)
	s.notifier.NotifyStatusChanged(task, p)

	return task, nil
}

// Delete removes the whole entity. No soft delete; sessions, history and
// comments go with it at the storage boundary.
func (s *taskServiceImpl) Delete(ctx context.Context, p entity.Principal, id string) error {
	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if d := authz.Authorize(p, authz.ActionDelete, relationship(p, task), nil); !d.Allowed {
		return &entity.ForbiddenError{Reason: d.Reason}
	}

	deleted, err := s.taskRepo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete task", "error", err, "task_id", id)
		return fmt.Errorf("delete task: %w", err)
	}
	if !deleted {
		return &entity.NotFoundError{Resource: "task", ID: id}
	}

	s.logger.Info("Task deleted", "task_id", id, "deleted_by", p.ID)
	return nil
}

// AddComment appends a comment for a principal permitted to comment.
func (s *taskServiceImpl) AddComment(ctx context.Context, p entity.Principal, id, message string) (*entity.Task, error) {
	if message == "" {
		return nil, entity.NewValidationError("message", "message is required")
	}

	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(p, authz.ActionComment, relationship(p, task), nil); !d.Allowed {
		return nil, &entity.ForbiddenError{Reason: d.Reason}
	}

	if _, err := s.appendComment(ctx, task, p, message); err != nil {
		return nil, err
	}
	return task, nil
}

// AddWatcher adds the principal to the task's watcher set. Adding an
// existing watcher is an explicit no-op.
func (s *taskServiceImpl) AddWatcher(ctx context.Context, p entity.Principal, id string) (*entity.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(p, authz.ActionRead, relationship(p, task), nil); !d.Allowed {
		return nil, &entity.ForbiddenError{Reason: d.Reason}
	}

	if task.HasWatcher(p.ID) {
		return task, nil
	}
	if err := s.taskRepo.AddWatcher(ctx, task.ID, p.ID); err != nil {
		s.logger.Error("Failed to add watcher", "error", err, "task_id", task.ID, "user_id", p.ID)
		return nil, fmt.Errorf("add watcher: %w", err)
	}
	task.Watchers = append(task.Watchers, p.ID)
	return task, nil
}

func (s *taskServiceImpl) appendComment(ctx context.Context, task *entity.Task, p entity.Principal, message string) (*entity.Comment, error) {
	comment := &entity.Comment{
		AuthorID:  p.ID,
		Message:   utils.SanitizeString(message),
		CreatedAt: time.Now(),
	}
	if err := s.taskRepo.AppendComment(ctx, task.ID, comment); err != nil {
		s.logger.Error("Failed to append comment", "error", err, "task_id", task.ID)
		return nil, fmt.Errorf("append comment: %w", err)
	}
	task.Comments = append(task.Comments, *comment)
	s.notifier.NotifyCommented(task, p)
	return comment, nil
}

func (s *taskServiceImpl) load(ctx context.Context, id string) (*entity.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get task", "error", err, "task_id", id)
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, &entity.NotFoundError{Resource: "task", ID: id}
	}
	return task, nil
}

// applySession folds a freshly stopped session into the in-memory tracker
// state, mirroring what the repository persisted.
func applySession(task *entity.Task, session *entity.Session) {
	task.TimeTracking.Sessions = append(task.TimeTracking.Sessions, *session)
	task.TimeTracking.TotalTimeSeconds += session.DurationSeconds
	task.TimeTracking.IsActive = false
	task.TimeTracking.CurrentSessionStart = nil
}

// relationship derives the policy relationship flags between a principal
// and a task.
func relationship(p entity.Principal, task *entity.Task) authz.Relationship {
	return authz.Relationship{
		IsAssignee: task.AssignedTo == p.ID,
		IsAssigner: task.AssignedBy == p.ID,
	}
}
