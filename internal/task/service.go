package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("task not found")
	ErrValidation = errors.New("invalid task")
)

// Publisher appends domain events; implemented by the event log.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type Service struct {
	DB     *gorm.DB
	Events Publisher
	Log    *zap.Logger
}

type CreateInput struct {
	DreamID     string
	Title       string
	Description string
	StartDate   *time.Time // nil means "starts now"
	Deadline    time.Time
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title required", ErrValidation)
	}

	now := time.Now().UTC()
	if !in.Deadline.After(now) {
		return nil, fmt.Errorf("%w: deadline must be in the future", ErrValidation)
	}

	start := now
	if in.StartDate != nil {
		start = in.StartDate.UTC()
		if start.Before(now.Add(-time.Minute)) {
			return nil, fmt.Errorf("%w: start date cannot be in the past", ErrValidation)
		}
		if start.After(in.Deadline) {
			return nil, fmt.Errorf("%w: start date cannot be after deadline", ErrValidation)
		}
	}

	t := Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		DreamID:     in.DreamID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		StartDate:   start,
		Deadline:    in.Deadline.UTC(),
		Status:      StatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, err
	}

	if err := s.Events.Publish(ctx, "task.created", map[string]any{
		"taskId":    t.ID,
		"dreamId":   t.DreamID,
		"userId":    userID,
		"title":     t.Title,
		"startDate": t.StartDate.Format(time.RFC3339),
		"deadline":  t.Deadline.Format(time.RFC3339),
	}); err != nil {
		// The task row exists either way; a lost event only costs the
		// pre-start reminder.
		s.Log.Error("publish task.created failed", zap.String("task_id", t.ID), zap.Error(err))
	}

	s.Log.Info("task created",
		zap.String("task_id", t.ID),
		zap.String("user_id", userID),
		zap.Time("deadline", t.Deadline))
	return &t, nil
}

func (s *Service) Complete(ctx context.Context, userID, taskID string) (*Task, error) {
	t, err := s.find(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusCompleted {
		return t, nil
	}

	t.Status = StatusCompleted
	t.Progress = 100
	if err := s.DB.WithContext(ctx).Model(t).
		Updates(map[string]any{"status": StatusCompleted, "progress": 100}).Error; err != nil {
		return nil, err
	}

	if err := s.Events.Publish(ctx, "task.completed", map[string]any{
		"taskId":  t.ID,
		"dreamId": t.DreamID,
		"userId":  userID,
	}); err != nil {
		s.Log.Error("publish task.completed failed", zap.String("task_id", t.ID), zap.Error(err))
	}
	return t, nil
}

func (s *Service) UpdateProgress(ctx context.Context, userID, taskID string, progress int) (*Task, error) {
	if progress < 0 || progress > 100 {
		return nil, fmt.Errorf("%w: progress must be 0-100", ErrValidation)
	}
	t, err := s.find(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"progress": progress}
	if t.Status == StatusPending && progress > 0 {
		updates["status"] = StatusInProgress
	}
	if err := s.DB.WithContext(ctx).Model(t).Updates(updates).Error; err != nil {
		return nil, err
	}
	t.Progress = progress
	if st, ok := updates["status"]; ok {
		t.Status = st.(string)
	}

	if err := s.Events.Publish(ctx, "task.progress_updated", map[string]any{
		"taskId":   t.ID,
		"dreamId":  t.DreamID,
		"userId":   userID,
		"progress": progress,
	}); err != nil {
		s.Log.Error("publish task.progress_updated failed", zap.String("task_id", t.ID), zap.Error(err))
	}
	return t, nil
}

func (s *Service) find(ctx context.Context, userID, taskID string) (*Task, error) {
	var t Task
	err := s.DB.WithContext(ctx).First(&t, "id = ? AND user_id = ?", taskID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
