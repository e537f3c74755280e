package service

import (
	"context"
	"fmt"
	"time"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ListTasksRequest carries the optional listing criteria.
type ListTasksRequest struct {
	Status      string
	Priority    string
	AssignedTo  string
	AssignedBy  string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	SortOrder   string
	Page        int
	Limit       int
}

// Pagination is the derived page metadata returned with listings.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// TaskListResult is a page of tasks plus its metadata.
type TaskListResult struct {
	Tasks      []*entity.Task `json:"tasks"`
	Pagination Pagination     `json:"pagination"`
}

// QueryService produces role-scoped listings and aggregate statistics.
// Role scoping is applied before user filters: managers see the unscoped
// filter, a designated employee sees tasks they are assigned or created,
// a plain employee sees only their assigned tasks.
type QueryService interface {
	List(ctx context.Context, p entity.Principal, req ListTasksRequest) (*TaskListResult, error)
	Stats(ctx context.Context, p entity.Principal) (*port.TaskStats, error)
}

type queryServiceImpl struct {
	taskRepo port.TaskRepository
	logger   Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(taskRepo port.TaskRepository, logger Logger) QueryService {
	return &queryServiceImpl{
		taskRepo: taskRepo,
		logger:   logger,
	}
}

// List returns one page of tasks matching the scoped filter.
func (s *queryServiceImpl) List(ctx context.Context, p entity.Principal, req ListTasksRequest) (*TaskListResult, error) {
	filter, err := buildFilter(p, req)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	pageSpec := port.TaskPage{
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	}

	tasks, err := s.taskRepo.List(ctx, filter, pageSpec)
	if err != nil {
		s.logger.Error("Failed to list tasks", "error", err)
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	total, err := s.taskRepo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to count tasks", "error", err)
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &TaskListResult{
		Tasks: tasks,
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}, nil
}

// Stats groups the principal's visible tasks by effective status and by
// priority, and counts overdue tasks and tasks with an active session.
func (s *queryServiceImpl) Stats(ctx context.Context, p entity.Principal) (*port.TaskStats, error) {
	filter := scopeFilter(p, port.TaskFilter{Now: time.Now()})
	stats, err := s.taskRepo.Stats(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to compute task stats", "error", err)
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

// buildFilter validates the request criteria and applies role scoping.
func buildFilter(p entity.Principal, req ListTasksRequest) (port.TaskFilter, error) {
	filter := port.TaskFilter{
		AssignedTo:  req.AssignedTo,
		AssignedBy:  req.AssignedBy,
		Search:      req.Search,
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
		Now:         time.Now(),
	}

	if req.Status != "" {
		status := entity.Status(req.Status)
		if !status.IsValid() {
			return port.TaskFilter{}, entity.NewValidationError("status", fmt.Sprintf("unknown status %q", req.Status))
		}
		filter.Status = status
	}
	if req.Priority != "" {
		priority := entity.Priority(req.Priority)
		if !priority.IsValid() {
			return port.TaskFilter{}, entity.NewValidationError("priority", fmt.Sprintf("unknown priority %q", req.Priority))
		}
		filter.Priority = priority
	}

	return scopeFilter(p, filter), nil
}

// scopeFilter narrows a filter to what the principal's role may see.
func scopeFilter(p entity.Principal, filter port.TaskFilter) port.TaskFilter {
	switch {
	case p.IsManager():
		// unscoped
	case p.PMDesignation:
		filter.ScopeParticipant = p.ID
	default:
		filter.ScopeAssignee = p.ID
	}
	return filter
}
