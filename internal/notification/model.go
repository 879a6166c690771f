package notification

import (
	"encoding/json"
	"time"
)

const (
	StatusScheduled  = "SCHEDULED"
	StatusProcessing = "PROCESSING"
	StatusSent       = "SENT"
	StatusFailed     = "FAILED"
	StatusArchived   = "ARCHIVED"
)

const (
	TypeReminder      = "REMINDER"
	TypeMotivational  = "MOTIVATIONAL"
	TypeSystem        = "SYSTEM"
	TypeProgressCheck = "PROGRESS_CHECK"
)

// Notification is a single scheduled nudge. The central invariant: per task,
// at most one REMINDER row is SCHEDULED or PROCESSING at any time. Message
// may be empty until the delivery worker generates it at send time.
type Notification struct {
	ID          string          `gorm:"primaryKey;type:text"`
	UserID      string          `gorm:"index;not null;type:text"`
	DreamID     *string         `gorm:"index;type:text"`
	TaskID      *string         `gorm:"index;type:text"`
	Type        string          `gorm:"not null"`
	Message     string          `gorm:"type:text;not null;default:''"`
	ScheduledAt time.Time       `gorm:"index;not null"` // UTC
	Status      string          `gorm:"index;not null;default:'SCHEDULED'"`
	Metadata    json.RawMessage `gorm:"type:jsonb"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// Pending reports whether the row still occupies the per-task reminder slot.
func (n *Notification) Pending() bool {
	return n.Status == StatusScheduled || n.Status == StatusProcessing
}
