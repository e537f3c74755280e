// Package email sends task assignment mail over SMTP.
package email

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
	"github.com/adnan4498/infinitum-crm-server/pkg/utils"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Enabled  bool
}

// Sender delivers task emails over SMTP
type Sender struct {
	config Config
	dialer *gomail.Dialer
	logger *zap.Logger
}

// NewSender creates a new email sender
func NewSender(config Config, logger *zap.Logger) *Sender {
	return &Sender{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
		logger: logger,
	}
}

// SendTaskEmail sends an assignment email to the given address. A disabled
// sender is a no-op so local environments need no SMTP server.
func (s *Sender) SendTaskEmail(ctx context.Context, address string, task *entity.Task, actorName string) error {
	if !s.config.Enabled {
		s.logger.Debug("Email sending disabled, skipping",
			zap.String("task_id", task.ID),
			zap.String("recipient", address))
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := utils.ValidateEmail(address); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.config.From)
	msg.SetHeader("To", address)
	msg.SetHeader("Subject", fmt.Sprintf("New task assigned: %s", task.Title))
	msg.SetBody("text/plain", s.buildBody(task, actorName))

	if err := s.dialer.DialAndSend(msg); err != nil {
		s.logger.Error("Failed to send task email",
			zap.String("task_id", task.ID),
			zap.String("recipient", address),
			zap.Error(err))
		return fmt.Errorf("failed to send task email: %w", err)
	}

	s.logger.Info("Task email sent",
		zap.String("task_id", task.ID),
		zap.String("recipient", address))

	return nil
}

// buildBody builds the plain-text email body
func (s *Sender) buildBody(task *entity.Task, actorName string) string {
	return fmt.Sprintf(`Hello,

%s assigned a task to you.

Task details:
- Title: %s
- Priority: %s
- Due date: %s

Description:
%s

This email was sent automatically, please do not reply.
`,
		actorName,
		task.Title,
		task.Priority,
		task.DueDate.Format("2006-01-02"),
		task.Description,
	)
}
