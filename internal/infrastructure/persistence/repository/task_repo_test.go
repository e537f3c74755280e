package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
	"github.com/adnan4498/infinitum-crm-server/pkg/database"
)

func setupDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations("../../../../migrations"))

	return db
}

func seedUsers(t *testing.T, db *database.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := db.Exec(`
			INSERT INTO users (id, email, name, password_hash, role)
			VALUES (?, ?, ?, 'x', 'employee')
		`, id, id+"@example.com", id)
		require.NoError(t, err)
	}
}

func seedTask(t *testing.T, repo port.TaskRepository, id string, status entity.Status, dueDate time.Time) *entity.Task {
	t.Helper()
	now := time.Now().UTC()
	task := entity.NewTask(id, "Task "+id, "description", "emp-1", "pm-1", entity.PriorityMedium, dueDate, now)
	task.Status = status
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}

func TestTaskRepository_CreateAndGetByID(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	hours := 8.5
	task := entity.NewTask("t-1", "Ship release", "cut and ship", "emp-1", "pm-1", entity.PriorityHigh, now.Add(48*time.Hour), now)
	task.EstimatedHours = &hours
	task.Category = "release"
	task.Tags = []string{"backend", "infra"}
	task.CustomFields["sprint"] = "12"

	require.NoError(t, repo.Create(ctx, task))

	got, err := repo.GetByID(ctx, "t-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Ship release", got.Title)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, entity.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"backend", "infra"}, got.Tags)
	assert.Equal(t, map[string]string{"sprint": "12"}, got.CustomFields)
	require.NotNil(t, got.EstimatedHours)
	assert.Equal(t, 8.5, *got.EstimatedHours)
	assert.Nil(t, got.StartDate)
	assert.False(t, got.TimeTracking.IsActive)
}

func TestTaskRepository_GetByID_Missing(t *testing.T) {
	db := setupDB(t)
	repo := NewTaskRepository(db, zap.NewNop())

	got, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTaskRepository_Update_Missing(t *testing.T) {
	db := setupDB(t)
	repo := NewTaskRepository(db, zap.NewNop())

	task := entity.NewTask("ghost", "t", "d", "emp-1", "pm-1", entity.PriorityLow, time.Now(), time.Now())
	err := repo.Update(context.Background(), task)
	assert.True(t, entity.IsNotFound(err))
}

func TestTaskRepository_SessionLifecycle(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	seedTask(t, repo, "t-1", entity.StatusInProgress, time.Now().Add(24*time.Hour))

	start := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.StartSession(ctx, "t-1", start))

	// Second start is rejected by the conditional update
	err := repo.StartSession(ctx, "t-1", start.Add(time.Minute))
	assert.ErrorIs(t, err, entity.ErrAlreadyActive)

	// Unknown task is a distinct error
	err = repo.StartSession(ctx, "ghost", start)
	assert.True(t, entity.IsNotFound(err))

	end := start.Add(30 * time.Minute)
	session, err := repo.StopSession(ctx, "t-1", end, "review pass")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), session.DurationSeconds)
	assert.Equal(t, "review pass", session.Notes)

	// Second stop finds no active session
	_, err = repo.StopSession(ctx, "t-1", end.Add(time.Minute), "")
	assert.ErrorIs(t, err, entity.ErrNoActiveSession)

	got, err := repo.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.False(t, got.TimeTracking.IsActive)
	assert.Nil(t, got.TimeTracking.CurrentSessionStart)
	assert.Equal(t, int64(1800), got.TimeTracking.TotalTimeSeconds)
	require.Len(t, got.TimeTracking.Sessions, 1)
}

func TestTaskRepository_SessionAccumulation(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	seedTask(t, repo, "t-1", entity.StatusInProgress, time.Now().Add(24*time.Hour))

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.StartSession(ctx, "t-1", start))
		_, err := repo.StopSession(ctx, "t-1", start.Add(10*time.Minute), "")
		require.NoError(t, err)
	}

	got, err := repo.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), got.TimeTracking.TotalTimeSeconds)
	require.Len(t, got.TimeTracking.Sessions, 3)

	// Insertion order preserved
	for i := 1; i < len(got.TimeTracking.Sessions); i++ {
		assert.Greater(t, got.TimeTracking.Sessions[i].ID, got.TimeTracking.Sessions[i-1].ID)
	}
}

func TestTaskRepository_ListEffectiveStatusFilter(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	seedTask(t, repo, "due-pending", entity.StatusPending, now.Add(24*time.Hour))
	seedTask(t, repo, "late-pending", entity.StatusPending, now.Add(-24*time.Hour))
	seedTask(t, repo, "late-completed", entity.StatusCompleted, now.Add(-24*time.Hour))

	page := port.TaskPage{Limit: 10}

	// "overdue" matches the derived view: past-due, non-terminal
	tasks, err := repo.List(ctx, port.TaskFilter{Status: entity.StatusOverdue, Now: now}, page)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "late-pending", tasks[0].ID)

	// "pending" excludes the past-due task, which now reads as overdue
	tasks, err = repo.List(ctx, port.TaskFilter{Status: entity.StatusPending, Now: now}, page)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "due-pending", tasks[0].ID)

	// Terminal statuses are unaffected by the due date
	tasks, err = repo.List(ctx, port.TaskFilter{Status: entity.StatusCompleted, Now: now}, page)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "late-completed", tasks[0].ID)

	count, err := repo.Count(ctx, port.TaskFilter{Status: entity.StatusOverdue, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTaskRepository_ListScopes(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1", "emp-2")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	seedTask(t, repo, "mine", entity.StatusPending, now.Add(24*time.Hour))

	other := entity.NewTask("theirs", "Other", "d", "emp-2", "emp-1", entity.PriorityLow, now.Add(24*time.Hour), now)
	require.NoError(t, repo.Create(ctx, other))

	page := port.TaskPage{Limit: 10}

	// Assignee scope sees only assigned tasks
	tasks, err := repo.List(ctx, port.TaskFilter{ScopeAssignee: "emp-1"}, page)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "mine", tasks[0].ID)

	// Participant scope sees assigned or created tasks
	tasks, err = repo.List(ctx, port.TaskFilter{ScopeParticipant: "emp-1"}, page)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestTaskRepository_Search(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	task := entity.NewTask("t-1", "Migrate Billing", "move invoices to the new schema", "emp-1", "pm-1", entity.PriorityHigh, now.Add(24*time.Hour), now)
	require.NoError(t, repo.Create(ctx, task))

	page := port.TaskPage{Limit: 10}

	tasks, err := repo.List(ctx, port.TaskFilter{Search: "billing"}, page)
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "search is case-insensitive on title")

	tasks, err = repo.List(ctx, port.TaskFilter{Search: "INVOICES"}, page)
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "search matches description too")

	tasks, err = repo.List(ctx, port.TaskFilter{Search: "payroll"}, page)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskRepository_Stats(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	seedTask(t, repo, "p1", entity.StatusPending, now.Add(24*time.Hour))
	seedTask(t, repo, "p2", entity.StatusPending, now.Add(-24*time.Hour)) // derived overdue
	seedTask(t, repo, "c1", entity.StatusCompleted, now.Add(-24*time.Hour))
	tracked := seedTask(t, repo, "a1", entity.StatusInProgress, now.Add(24*time.Hour))
	require.NoError(t, repo.StartSession(ctx, tracked.ID, now))

	stats, err := repo.Stats(ctx, port.TaskFilter{Now: now})
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.Overdue)
	assert.Equal(t, int64(1), stats.ActiveTracking)
	assert.Equal(t, int64(1), stats.ByStatus[entity.StatusPending])
	assert.Equal(t, int64(1), stats.ByStatus[entity.StatusOverdue])
	assert.Equal(t, int64(1), stats.ByStatus[entity.StatusCompleted])
	assert.Equal(t, int64(1), stats.ByStatus[entity.StatusInProgress])
}

func TestTaskRepository_AppendAndLoadChildren(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	seedTask(t, repo, "t-1", entity.StatusPending, time.Now().Add(24*time.Hour))
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.AppendStatusHistory(ctx, "t-1", entity.StatusChange{
		Status: entity.StatusInProgress, ChangedBy: "emp-1", ChangedAt: now, Reason: entity.ReasonTaskStarted,
	}))

	comment := &entity.Comment{AuthorID: "pm-1", Message: "looks good", CreatedAt: now}
	require.NoError(t, repo.AppendComment(ctx, "t-1", comment))
	assert.NotZero(t, comment.ID)

	require.NoError(t, repo.AddWatcher(ctx, "t-1", "pm-1"))
	require.NoError(t, repo.AddWatcher(ctx, "t-1", "pm-1")) // idempotent

	got, err := repo.GetByID(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, entity.ReasonTaskStarted, got.StatusHistory[0].Reason)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "looks good", got.Comments[0].Message)
	assert.Equal(t, []string{"pm-1"}, got.Watchers)
}

func TestTaskRepository_DeleteCascades(t *testing.T) {
	db := setupDB(t)
	seedUsers(t, db, "emp-1", "pm-1")
	repo := NewTaskRepository(db, zap.NewNop())
	ctx := context.Background()

	seedTask(t, repo, "t-1", entity.StatusPending, time.Now().Add(24*time.Hour))
	require.NoError(t, repo.AppendComment(ctx, "t-1", &entity.Comment{AuthorID: "pm-1", Message: "m", CreatedAt: time.Now()}))

	deleted, err := repo.Delete(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, "t-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM task_comments WHERE task_id = 't-1'").Scan(&count))
	assert.Zero(t, count)
}
