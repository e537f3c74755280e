package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/authz"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/lifecycle"
)

// TrackingService operates the single-active-session time tracker. Only the
// task's assignee may start or stop tracking. The exclusivity check and
// write happen as one conditional update at the storage boundary, so two
// concurrent starts against the same task cannot both succeed.
type TrackingService interface {
	Start(ctx context.Context, p entity.Principal, taskID string) (*entity.Task, error)
	Stop(ctx context.Context, p entity.Principal, taskID string, notes string) (*entity.Task, error)
}

type trackingServiceImpl struct {
	taskRepo port.TaskRepository
	logger   Logger
}

// NewTrackingService creates a new TrackingService
func NewTrackingService(taskRepo port.TaskRepository, logger Logger) TrackingService {
	return &trackingServiceImpl{
		taskRepo: taskRepo,
		logger:   logger,
	}
}

// Start opens a tracking session. A pending task is promoted to in_progress
// with a history entry.
func (s *trackingServiceImpl) Start(ctx context.Context, p entity.Principal, taskID string) (*entity.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(p, authz.ActionStart, relationship(p, task), nil); !d.Allowed {
		return nil, &entity.ForbiddenError{Reason: d.Reason}
	}

	now := time.Now()
	if err := s.taskRepo.StartSession(ctx, taskID, now); err != nil {
		if errors.Is(err, entity.ErrAlreadyActive) {
			return nil, &entity.ConflictError{Err: entity.ErrAlreadyActive}
		}
		s.logger.Error("Failed to start session", "error", err, "task_id", taskID)
		return nil, fmt.Errorf("start session: %w", err)
	}
	task.TimeTracking.IsActive = true
	task.TimeTracking.CurrentSessionStart = &now

	if task.Status == entity.StatusPending {
		sm := lifecycle.NewTaskStateMachine(task.Status)
		if err := sm.Fire(ctx, lifecycle.TriggerStart); err != nil {
			return nil, &entity.ConflictError{Err: err}
		}
		task.Status = sm.State()
		task.StartDate = &now
		task.UpdatedAt = now
		if err := s.taskRepo.Update(ctx, task); err != nil {
			s.logger.Error("Failed to promote task to in_progress", "error", err, "task_id", taskID)
			return nil, fmt.Errorf("promote task: %w", err)
		}

		change := entity.StatusChange{Status: task.Status, ChangedBy: p.ID, ChangedAt: now, Reason: entity.ReasonTaskStarted}
		if err := s.taskRepo.AppendStatusHistory(ctx, taskID, change); err != nil {
			s.logger.Error("Failed to append status history", "error", err, "task_id", taskID)
			return nil, fmt.Errorf("append status history: %w", err)
		}
		task.StatusHistory = append(task.StatusHistory, change)
	}

	s.logger.Info("Time tracking started", "task_id", taskID, "user_id", p.ID)
	return task, nil
}

// Stop closes the active session, appends its record and accumulates its
// duration into the task total.
func (s *trackingServiceImpl) Stop(ctx context.Context, p entity.Principal, taskID string, notes string) (*entity.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(p, authz.ActionStop, relationship(p, task), nil); !d.Allowed {
		return nil, &entity.ForbiddenError{Reason: d.Reason}
	}

	session, err := s.taskRepo.StopSession(ctx, taskID, time.Now(), notes)
	if err != nil {
		if errors.Is(err, entity.ErrNoActiveSession) {
			return nil, &entity.ConflictError{Err: entity.ErrNoActiveSession}
		}
		s.logger.Error("Failed to stop session", "error", err, "task_id", taskID)
		return nil, fmt.Errorf("stop session: %w", err)
	}
	applySession(task, session)

	s.logger.Info("Time tracking stopped",
		"task_id", taskID,
		"user_id", p.ID,
		"duration_seconds", session.DurationSeconds)
	return task, nil
}

func (s *trackingServiceImpl) load(ctx context.Context, id string) (*entity.Task, error) {
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
