package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adnan4498/infinitum-crm-server/internal/application/service"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
	"github.com/adnan4498/infinitum-crm-server/internal/report"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	taskService     service.TaskService
	trackingService service.TrackingService
	queryService    service.QueryService
	reportExporter  *report.Exporter
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	taskService service.TaskService,
	trackingService service.TrackingService,
	queryService service.QueryService,
	reportExporter *report.Exporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		taskService:     taskService,
		trackingService: trackingService,
		queryService:    queryService,
		reportExporter:  reportExporter,
		logger:          logger,
	}
}

// Response represents the standard JSON envelope
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// taskResponse is a task as readers observe it: the status field carries the
// effective (overdue-aware) status while the stored fields stay intact.
type taskResponse struct {
	*entity.Task
	Status       entity.Status `json:"status"`
	IsOverdue    bool          `json:"is_overdue"`
	HoursSpent   float64       `json:"hours_spent"`
	DaysUntilDue int           `json:"days_until_due"`
}

func toTaskResponse(task *entity.Task) taskResponse {
	now := time.Now()
	return taskResponse{
		Task:         task,
		Status:       task.EffectiveStatus(now),
		IsOverdue:    task.IsOverdue(now),
		HoursSpent:   task.HoursSpent(),
		DaysUntilDue: task.DaysUntilDue(now),
	}
}

func toTaskResponses(tasks []*entity.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toTaskResponse(task))
	}
	return out
}

// respondError maps the error taxonomy onto status codes: validation and
// domain conflicts are 400, policy denials 403, missing entities 404,
// anything else a generic 500 with the detail kept server-side.
func respondError(c *gin.Context, logger Logger, err error, message string) {
	switch {
	case entity.IsValidation(err) || entity.IsConflict(err):
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: message, Error: err.Error()})
	case entity.IsForbidden(err):
		c.JSON(http.StatusForbidden, Response{Success: false, Message: message, Error: err.Error()})
	case entity.IsNotFound(err):
		c.JSON(http.StatusNotFound, Response{Success: false, Message: message, Error: err.Error()})
	default:
		logger.Error("Unexpected error", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Message: message, Error: "internal server error"})
	}
}

// HealthCheck returns service health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "ok",
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// ListTasks handles GET /api/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	req, err := parseListRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid query parameters", Error: err.Error()})
		return
	}

	result, err := h.queryService.List(c.Request.Context(), mustPrincipal(c), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to list tasks")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "tasks retrieved",
		Data: gin.H{
			"tasks":      toTaskResponses(result.Tasks),
			"pagination": result.Pagination,
		},
	})
}

// CreateTask handles POST /api/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid request body", Error: err.Error()})
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), mustPrincipal(c), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to create task")
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Message: "task created",
		Data:    toTaskResponse(task),
	})
}

// GetTask handles GET /api/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	task, err := h.taskService.Get(c.Request.Context(), mustPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "failed to get task")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "task retrieved",
		Data:    toTaskResponse(task),
	})
}

// UpdateTask handles PUT /api/tasks/:id
func (h *Handlers) UpdateTask(c *gin.Context) {
	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid request body", Error: err.Error()})
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), mustPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to update task")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "task updated",
		Data:    toTaskResponse(task),
	})
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *Handlers) DeleteTask(c *gin.Context) {
	if err := h.taskService.Delete(c.Request.Context(), mustPrincipal(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err, "failed to delete task")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "task deleted",
	})
}

// StartTracking handles POST /api/tasks/:id/start
func (h *Handlers) StartTracking(c *gin.Context) {
	task, err := h.trackingService.Start(c.Request.Context(), mustPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "failed to start time tracking")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "time tracking started",
		Data:    toTaskResponse(task),
	})
}

// StopTracking handles POST /api/tasks/:id/stop
func (h *Handlers) StopTracking(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	// Body is optional on stop
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid request body", Error: err.Error()})
			return
		}
	}

	task, err := h.trackingService.Stop(c.Request.Context(), mustPrincipal(c), c.Param("id"), req.Notes)
	if err != nil {
		respondError(c, h.logger, err, "failed to stop time tracking")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "time tracking stopped",
		Data:    toTaskResponse(task),
	})
}

// CompleteTask handles POST /api/tasks/:id/complete
func (h *Handlers) CompleteTask(c *gin.Context) {
	task, err := h.taskService.Complete(c.Request.Context(), mustPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "failed to complete task")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "task completed",
		Data:    toTaskResponse(task),
	})
}

// AddComment handles POST /api/tasks/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid request body", Error: err.Error()})
		return
	}

	task, err := h.taskService.AddComment(c.Request.Context(), mustPrincipal(c), c.Param("id"), req.Message)
	if err != nil {
		respondError(c, h.logger, err, "failed to add comment")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "comment added",
		Data:    toTaskResponse(task),
	})
}

// AddWatcher handles POST /api/tasks/:id/watch
func (h *Handlers) AddWatcher(c *gin.Context) {
	task, err := h.taskService.AddWatcher(c.Request.Context(), mustPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "failed to add watcher")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "watcher added",
		Data:    toTaskResponse(task),
	})
}

// TaskStats handles GET /api/tasks/stats
func (h *Handlers) TaskStats(c *gin.Context) {
	stats, err := h.queryService.Stats(c.Request.Context(), mustPrincipal(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to compute statistics")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "statistics computed",
		Data:    stats,
	})
}

// TaskReport handles GET /api/tasks/report, streaming the role-scoped
// listing as an xlsx workbook.
func (h *Handlers) TaskReport(c *gin.Context) {
	req, err := parseListRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "invalid query parameters", Error: err.Error()})
		return
	}
	req.Page = 1
	req.Limit = 100

	result, err := h.queryService.List(c.Request.Context(), mustPrincipal(c), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to build report")
		return
	}

	data, err := h.reportExporter.Export(result.Tasks, time.Now())
	if err != nil {
		respondError(c, h.logger, err, "failed to build report")
		return
	}

	filename := fmt.Sprintf("task-report-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// parseListRequest reads the listing criteria from query parameters.
func parseListRequest(c *gin.Context) (service.ListTasksRequest, error) {
	var page, limit int
	if v := c.Query("page"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &page); err != nil {
			return service.ListTasksRequest{}, errors.New("page must be an integer")
		}
	}
	if v := c.Query("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil {
			return service.ListTasksRequest{}, errors.New("limit must be an integer")
		}
	}

	var createdFrom, createdTo *time.Time
	if v := c.Query("created_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return service.ListTasksRequest{}, errors.New("created_from must be RFC3339")
		}
		createdFrom = &t
	}
	if v := c.Query("created_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return service.ListTasksRequest{}, errors.New("created_to must be RFC3339")
		}
		createdTo = &t
	}

	return service.ListTasksRequest{
		Status:      c.Query("status"),
		Priority:    c.Query("priority"),
		AssignedTo:  c.Query("assigned_to"),
		AssignedBy:  c.Query("assigned_by"),
		Search:      c.Query("search"),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
		Page:        page,
		Limit:       limit,
	}, nil
}
