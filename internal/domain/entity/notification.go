package entity

import "time"

// Notification is the in-app side-channel record produced after a task
// mutation commits. It references the task by id and is best-effort:
// failures to persist or deliver never fail the triggering operation.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	SenderID    string    `json:"sender_id"`
	TaskID      string    `json:"task_id"`
	Type        string    `json:"type"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"created_at"`
}
