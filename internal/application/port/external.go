package port

import (
	"context"

	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

// NotificationDispatcher is the best-effort side-channel informed of task
// lifecycle events. Implementations may persist, push or both; failures are
// the caller's to log and swallow.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n *entity.Notification) error
}

// EmailSender is the best-effort email side-channel.
type EmailSender interface {
	SendTaskEmail(ctx context.Context, address string, task *entity.Task, actorName string) error
}
