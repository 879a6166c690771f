package user

import (
	"time"

	"github.com/lib/pq"
)

// Motivation tones for generated messages.
const (
	ToneHarsh      = "HARSH"
	TonePositive   = "POSITIVE"
	ToneOptimistic = "OPTIMISTIC"
	ToneFear       = "FEAR"
	ToneLogical    = "LOGICAL"
	ToneNeutral    = "NEUTRAL"
)

type User struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Email     string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null;default:''"`
	Timezone  string    `gorm:"not null;default:'UTC'"` // IANA name
	CreatedAt time.Time `gorm:"not null"`
}

// Preference holds the scheduling profile. The pipeline reads it, only
// explicit preference updates write it. QuietHours entries are
// "HH:MM-HH:MM" local ranges.
type Preference struct {
	UserID                string         `gorm:"primaryKey;type:text"`
	NotificationFrequency int            `gorm:"not null;default:60"` // minutes
	SleepStart            string         `gorm:"not null;default:'23:00'"`
	SleepEnd              string         `gorm:"not null;default:'07:00'"`
	QuietHours            pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	MotivationTone        string         `gorm:"not null;default:'NEUTRAL'"`
	UpdatedAt             time.Time      `gorm:"not null"`
}
