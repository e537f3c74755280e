package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

const dispatchTimeout = 10 * time.Second

// Notifier is the application-facing side of the notification channel.
// Every method is fire-and-forget: it runs after the primary mutation has
// committed, and its failure is logged, never surfaced to the caller.
type Notifier interface {
	NotifyAssigned(task *entity.Task, actor entity.Principal)
	NotifyStatusChanged(task *entity.Task, actor entity.Principal)
	NotifyCommented(task *entity.Task, actor entity.Principal)
}

type notificationServiceImpl struct {
	dispatcher port.NotificationDispatcher
	userRepo   port.UserRepository
	email      port.EmailSender
	logger     Logger
}

// NewNotificationService creates a new Notifier. email may be nil when no
// SMTP side-channel is configured.
func NewNotificationService(dispatcher port.NotificationDispatcher, userRepo port.UserRepository, email port.EmailSender, logger Logger) Notifier {
	return &notificationServiceImpl{
		dispatcher: dispatcher,
		userRepo:   userRepo,
		email:      email,
		logger:     logger,
	}
}

// NotifyAssigned informs the assignee of a new task, with an email copy.
func (s *notificationServiceImpl) NotifyAssigned(task *entity.Task, actor entity.Principal) {
	s.dispatchAsync(task, actor, entity.NotificationActionAssigned, true)
}

// NotifyStatusChanged informs the counterpart and watchers of a transition.
func (s *notificationServiceImpl) NotifyStatusChanged(task *entity.Task, actor entity.Principal) {
	s.dispatchAsync(task, actor, entity.NotificationActionStatusChanged, false)
}

// NotifyCommented informs the counterpart and watchers of a new comment.
func (s *notificationServiceImpl) NotifyCommented(task *entity.Task, actor entity.Principal) {
	s.dispatchAsync(task, actor, entity.NotificationActionCommented, false)
}

// dispatchAsync delivers in a goroutine detached from the request context.
// The request may already be done; deliveries get their own deadline.
func (s *notificationServiceImpl) dispatchAsync(task *entity.Task, actor entity.Principal, action string, withEmail bool) {
	recipients := recipients(task, actor)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Notification dispatch panicked", "panic", r, "task_id", task.ID, "action", action)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		for _, recipientID := range recipients {
			n := &entity.Notification{
				ID:          uuid.NewString(),
				RecipientID: recipientID,
				SenderID:    actor.ID,
				TaskID:      task.ID,
				Type:        entity.NotificationTypeTask,
				Action:      action,
				CreatedAt:   time.Now(),
			}
			if err := s.dispatcher.Dispatch(ctx, n); err != nil {
				s.logger.Error("Failed to dispatch notification",
					"error", err,
					"task_id", task.ID,
					"recipient_id", recipientID,
					"action", action)
			}
		}

		if withEmail && s.email != nil {
			s.sendEmail(ctx, task, actor)
		}
	}()
}

func (s *notificationServiceImpl) sendEmail(ctx context.Context, task *entity.Task, actor entity.Principal) {
	assignee, err := s.userRepo.GetByID(ctx, task.AssignedTo)
	if err != nil || assignee == nil {
		s.logger.Error("Failed to resolve assignee for email", "error", err, "task_id", task.ID, "user_id", task.AssignedTo)
		return
	}
	if err := s.email.SendTaskEmail(ctx, assignee.Email, task, actor.ID); err != nil {
		s.logger.Error("Failed to send task email", "error", err, "task_id", task.ID, "address", assignee.Email)
	}
}

// recipients lists the counterpart plus watchers, excluding the actor and
// duplicates.
func recipients(task *entity.Task, actor entity.Principal) []string {
	seen := map[string]bool{actor.ID: true}
	var out []string
	for _, id := range append([]string{task.AssignedTo, task.AssignedBy}, task.Watchers...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
