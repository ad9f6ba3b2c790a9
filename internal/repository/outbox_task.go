package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "CREATED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusDone       TaskStatus = "DONE"
)

type OutboxTask struct {
	ID          uuid.UUID       `db:"id"`
	Status      TaskStatus      `db:"status"`
	Payload     json.RawMessage `db:"payload"`
	Topic       string          `db:"topic"`
	Attempts    int             `db:"attempts"`
	LastError   *string         `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

// AuditLogPayload is the message published for every audit entry.
type AuditLogPayload struct {
	AuditID     int64           `json:"audit_id"`
	ActorUserID *int64          `json:"actor_user_id,omitempty"`
	Action      string          `json:"action"`
	DonationID  *int64          `json:"donation_id,omitempty"`
	Description string          `json:"description"`
	Details     json.RawMessage `json:"details,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id,omitempty"`
}
