package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Log is the append-only domain event store. It satisfies the Publisher
// interfaces the task and dream services declare.
type Log struct {
	DB *gorm.DB
}

func (l *Log) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	ev := DomainEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Payload:   body,
		Status:    StatusPending,
	}
	return l.DB.WithContext(ctx).Create(&ev).Error
}

// Unprocessed returns the oldest pending events, oldest first, so a replay
// after downtime applies them in publish order.
func (l *Log) Unprocessed(ctx context.Context, limit int) ([]DomainEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var evs []DomainEvent
	err := l.DB.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at asc").
		Limit(limit).
		Find(&evs).Error
	return evs, err
}

func (l *Log) MarkProcessed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return l.DB.WithContext(ctx).Model(&DomainEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": StatusProcessed, "processed_at": now}).Error
}

func (l *Log) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return l.DB.WithContext(ctx).Model(&DomainEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": StatusFailed, "last_error": errMsg}).Error
}
