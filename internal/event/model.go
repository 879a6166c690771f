package event

import (
	"encoding/json"
	"time"
)

const (
	StatusPending   = "PENDING"
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
)

// DomainEvent is one appended fact about the domain. Rows are immutable
// apart from the processing bookkeeping.
type DomainEvent struct {
	ID        string          `gorm:"primaryKey;type:text"`
	EventType string          `gorm:"index;not null"`
	Payload   json.RawMessage `gorm:"type:jsonb;not null"`

	Status      string `gorm:"not null;default:'PENDING'"`
	ProcessedAt *time.Time
	LastError   *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
}
