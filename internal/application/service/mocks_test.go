package service

import (
	"context"
	"time"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

// mockTaskRepo implements port.TaskRepository with overridable functions.
type mockTaskRepo struct {
	CreateFunc              func(ctx context.Context, task *entity.Task) error
	GetByIDFunc             func(ctx context.Context, id string) (*entity.Task, error)
	UpdateFunc              func(ctx context.Context, task *entity.Task) error
	DeleteFunc              func(ctx context.Context, id string) (bool, error)
	ListFunc                func(ctx context.Context, filter port.TaskFilter, page port.TaskPage) ([]*entity.Task, error)
	CountFunc               func(ctx context.Context, filter port.TaskFilter) (int64, error)
	StatsFunc               func(ctx context.Context, filter port.TaskFilter) (*port.TaskStats, error)
	StartSessionFunc        func(ctx context.Context, taskID string, start time.Time) error
	StopSessionFunc         func(ctx context.Context, taskID string, end time.Time, notes string) (*entity.Session, error)
	AppendStatusHistoryFunc func(ctx context.Context, taskID string, change entity.StatusChange) error
	AppendCommentFunc       func(ctx context.Context, taskID string, comment *entity.Comment) error
	AddWatcherFunc          func(ctx context.Context, taskID, userID string) error
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, task)
	}
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id string) (*entity.Task, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTaskRepo) Update(ctx context.Context, task *entity.Task) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, task)
	}
	return nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, id string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return true, nil
}

func (m *mockTaskRepo) List(ctx context.Context, filter port.TaskFilter, page port.TaskPage) ([]*entity.Task, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter, page)
	}
	return nil, nil
}

func (m *mockTaskRepo) Count(ctx context.Context, filter port.TaskFilter) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockTaskRepo) Stats(ctx context.Context, filter port.TaskFilter) (*port.TaskStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, filter)
	}
	return &port.TaskStats{}, nil
}

func (m *mockTaskRepo) StartSession(ctx context.Context, taskID string, start time.Time) error {
	if m.StartSessionFunc != nil {
		return m.StartSessionFunc(ctx, taskID, start)
	}
	return nil
}

func (m *mockTaskRepo) StopSession(ctx context.Context, taskID string, end time.Time, notes string) (*entity.Session, error) {
	if m.StopSessionFunc != nil {
		return m.StopSessionFunc(ctx, taskID, end, notes)
	}
	return &entity.Session{}, nil
}

func (m *mockTaskRepo) AppendStatusHistory(ctx context.Context, taskID string, change entity.StatusChange) error {
	if m.AppendStatusHistoryFunc != nil {
		return m.AppendStatusHistoryFunc(ctx, taskID, change)
	}
	return nil
}

func (m *mockTaskRepo) AppendComment(ctx context.Context, taskID string, comment *entity.Comment) error {
	if m.AppendCommentFunc != nil {
		return m.AppendCommentFunc(ctx, taskID, comment)
	}
	return nil
}

func (m *mockTaskRepo) AddWatcher(ctx context.Context, taskID, userID string) error {
	if m.AddWatcherFunc != nil {
		return m.AddWatcherFunc(ctx, taskID, userID)
	}
	return nil
}

// mockUserRepo implements port.UserRepository with overridable functions.
type mockUserRepo struct {
	GetByIDFunc    func(ctx context.Context, id string) (*entity.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*entity.User, error)
	CreateFunc     func(ctx context.Context, user *entity.User) error
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &entity.User{ID: id, IsActive: true}, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil
}

// mockNotifier records which notifications were requested.
type mockNotifier struct {
	assigned      []string
	statusChanged []string
	commented     []string
}

func (m *mockNotifier) NotifyAssigned(task *entity.Task, actor entity.Principal) {
	m.assigned = append(m.assigned, task.ID)
}

func (m *mockNotifier) NotifyStatusChanged(task *entity.Task, actor entity.Principal) {
	m.statusChanged = append(m.statusChanged, task.ID)
}

func (m *mockNotifier) NotifyCommented(task *entity.Task, actor entity.Principal) {
	m.commented = append(m.commented, task.ID)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}
