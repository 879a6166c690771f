package jobs

import "time"

const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Job is the delivery attempt chain for one notification. The unique
// notification id is the dedup key: a retrying caller cannot double-enqueue
// the same reminder. Done jobs are kept for observability, failed ones
// indefinitely for inspection.
type Job struct {
	ID             uint64 `gorm:"primaryKey"`
	NotificationID string `gorm:"uniqueIndex;not null;type:text"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:5"`

	LockedBy *string `gorm:"type:text"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
