package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("notification not found")

// Store is the single source of truth for reminder state. All cross-worker
// coordination happens through its conditional updates; no in-process locks.
type Store struct {
	DB *gorm.DB
}

func (s *Store) Create(ctx context.Context, n *Notification) error {
	return s.DB.WithContext(ctx).Create(n).Error
}

func (s *Store) FindByID(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	if err := s.DB.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// ClaimProcessing atomically moves a row to PROCESSING. Returns false when
// another worker already claimed it, it was archived, or it was already
// sent — the caller must treat that as a silent no-op. FAILED stays
// claimable so queue retries can re-attempt delivery.
func (s *Store) ClaimProcessing(ctx context.Context, id string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND status IN ?", id, []string{StatusScheduled, StatusFailed}).
		Update("status", StatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", id).
		Update("status", StatusSent).Error
}

func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", id).
		Update("status", StatusFailed).Error
}

// UpdateMessage persists what was actually sent, so history matches reality.
func (s *Store) UpdateMessage(ctx context.Context, id, message string, metadata json.RawMessage) error {
	updates := map[string]any{"message": message}
	if metadata != nil {
		updates["metadata"] = metadata
	}
	return s.DB.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ArchiveForTask bulk-archives every still-scheduled notification of a task.
// In-flight PROCESSING rows finish their send; only future ones are pulled.
func (s *Store) ArchiveForTask(ctx context.Context, taskID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&Notification{}).
		Where("task_id = ? AND status = ?", taskID, StatusScheduled).
		Update("status", StatusArchived)
	return res.RowsAffected, res.Error
}

// HasPendingReminder reports whether the task's single reminder slot is
// occupied. This check is the dedup barrier that makes event replays safe.
func (s *Store) HasPendingReminder(ctx context.Context, taskID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&Notification{}).
		Where("task_id = ? AND type = ? AND status IN ?",
			taskID, TypeReminder, []string{StatusScheduled, StatusProcessing}).
		Count(&count).Error
	return count > 0, err
}

// ListForUser returns the user's notifications, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("scheduled_at desc").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// DueScheduled lists SCHEDULED rows whose time has come; used by the
// recovery sweep to re-enqueue work lost between row write and job insert.
func (s *Store) DueScheduled(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	var rows []Notification
	err := s.DB.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", StatusScheduled, now).
		Order("scheduled_at asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
