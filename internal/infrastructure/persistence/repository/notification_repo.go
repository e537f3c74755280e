package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
	"github.com/adnan4498/infinitum-crm-server/pkg/database"
)

// NotificationRepository persists in-app notifications and implements the
// port.NotificationDispatcher side-channel.
type NotificationRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB, logger *zap.Logger) port.NotificationDispatcher {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Dispatch stores the notification record.
func (r *NotificationRepository) Dispatch(ctx context.Context, n *entity.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, sender_id, task_id, type, action, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID,
		n.RecipientID,
		n.SenderID,
		n.TaskID,
		n.Type,
		n.Action,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to store notification",
			zap.String("task_id", n.TaskID),
			zap.String("recipient_id", n.RecipientID),
			zap.Error(err))
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}
