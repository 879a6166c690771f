package dream

import "time"

const (
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusArchived  = "ARCHIVED"
)

type Dream struct {
	ID                  string    `gorm:"primaryKey;type:text"`
	UserID              string    `gorm:"index;not null;type:text"`
	Title               string    `gorm:"not null"`
	Description         string    `gorm:"type:text;not null;default:''"`
	MotivationStatement string    `gorm:"type:text;not null;default:''"`
	Deadline            time.Time `gorm:"not null"`
	Status              string    `gorm:"index;not null;default:'ACTIVE'"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}
