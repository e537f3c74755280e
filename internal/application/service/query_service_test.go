package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

func TestQueryService_List_RoleScoping(t *testing.T) {
	tests := []struct {
		name            string
		principal       entity.Principal
		wantAssignee    string
		wantParticipant string
	}{
		{"manager is unscoped", managerPrincipal, "", ""},
		{"designated employee sees participation", designatedPrincipal, "", "dsg-1"},
		{"plain employee sees assigned", employeePrincipal, "emp-1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured port.TaskFilter
			taskRepo := &mockTaskRepo{
				ListFunc: func(ctx context.Context, filter port.TaskFilter, page port.TaskPage) ([]*entity.Task, error) {
					captured = filter
					return nil, nil
				},
			}
			svc := NewQueryService(taskRepo, noopLogger{})

			_, err := svc.List(context.Background(), tt.principal, ListTasksRequest{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAssignee, captured.ScopeAssignee)
			assert.Equal(t, tt.wantParticipant, captured.ScopeParticipant)
		})
	}
}

func TestQueryService_List_PaginationMetadata(t *testing.T) {
	var capturedPage port.TaskPage
	taskRepo := &mockTaskRepo{
		ListFunc: func(ctx context.Context, filter port.TaskFilter, page port.TaskPage) ([]*entity.Task, error) {
			capturedPage = page
			return []*entity.Task{fixtureTask(entity.StatusPending)}, nil
		},
		CountFunc: func(ctx context.Context, filter port.TaskFilter) (int64, error) {
			return 45, nil
		},
	}
	svc := NewQueryService(taskRepo, noopLogger{})

	result, err := svc.List(context.Background(), managerPrincipal, ListTasksRequest{Page: 2, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 10, capturedPage.Offset)
	assert.Equal(t, 10, capturedPage.Limit)
	assert.Equal(t, int64(45), result.Pagination.Total)
	assert.Equal(t, 2, result.Pagination.Page)
	assert.Equal(t, 5, result.Pagination.TotalPages)
	assert.True(t, result.Pagination.HasNext)
	assert.True(t, result.Pagination.HasPrev)
}

func TestQueryService_List_LimitDefaultsAndCap(t *testing.T) {
	var capturedPage port.TaskPage
	taskRepo := &mockTaskRepo{
		ListFunc: func(ctx context.Context, filter port.TaskFilter, page port.TaskPage) ([]*entity.Task, error) {
			capturedPage = page
			return nil, nil
		},
	}
	svc := NewQueryService(taskRepo, noopLogger{})

	_, err := svc.List(context.Background(), managerPrincipal, ListTasksRequest{})
	require.NoError(t, err)
	assert.Equal(t, defaultPageLimit, capturedPage.Limit)

	_, err = svc.List(context.Background(), managerPrincipal, ListTasksRequest{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, maxPageLimit, capturedPage.Limit)
}

func TestQueryService_List_InvalidFilters(t *testing.T) {
	svc := NewQueryService(&mockTaskRepo{}, noopLogger{})

	_, err := svc.List(context.Background(), managerPrincipal, ListTasksRequest{Status: "bogus"})
	assert.True(t, entity.IsValidation(err))

	_, err = svc.List(context.Background(), managerPrincipal, ListTasksRequest{Priority: "critical"})
	assert.True(t, entity.IsValidation(err))
}

func TestQueryService_List_OverdueFilterPassesThrough(t *testing.T) {
	var captured port.TaskFilter
	taskRepo := &mockTaskRepo{
		ListFunc: func(ctx context.Context, filter port.TaskFilter, page port.TaskPage) ([]*entity.Task, error) {
			captured = filter
			return nil, nil
		},
	}
	svc := NewQueryService(taskRepo, noopLogger{})

	_, err := svc.List(context.Background(), managerPrincipal, ListTasksRequest{Status: "overdue"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOverdue, captured.Status)
	assert.False(t, captured.Now.IsZero(), "overdue evaluation needs an anchor time")
}

func TestQueryService_Stats_Scoped(t *testing.T) {
	var captured port.TaskFilter
	taskRepo := &mockTaskRepo{
		StatsFunc: func(ctx context.Context, filter port.TaskFilter) (*port.TaskStats, error) {
			captured = filter
			return &port.TaskStats{
				Total:      3,
				ByStatus:   map[entity.Status]int64{entity.StatusPending: 1, entity.StatusOverdue: 2},
				ByPriority: map[entity.Priority]int64{entity.PriorityHigh: 3},
				Overdue:    2,
			}, nil
		},
	}
	svc := NewQueryService(taskRepo, noopLogger{})

	stats, err := svc.Stats(context.Background(), employeePrincipal)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", captured.ScopeAssignee)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Overdue)
}
