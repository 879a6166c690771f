package task

import "time"

// Task statuses. The reminder pipeline reads Status and Deadline to decide
// whether to keep chaining; it never writes Task fields directly.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusBlocked    = "BLOCKED"
	StatusArchived   = "ARCHIVED"
)

type Task struct {
	ID          string    `gorm:"primaryKey;type:text"`
	UserID      string    `gorm:"index;not null;type:text"`
	DreamID     string    `gorm:"index;not null;type:text"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	StartDate   time.Time `gorm:"not null"`
	Deadline    time.Time `gorm:"not null"`
	Status      string    `gorm:"index;not null;default:'PENDING'"`
	Progress    int       `gorm:"not null;default:0"` // percent
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// Active reports whether the reminder chain may continue for this task.
func (t *Task) Active() bool {
	return t.Status == StatusPending || t.Status == StatusInProgress
}
