package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dreamplanner/internal/schedule"
	"dreamplanner/internal/task"
	"dreamplanner/internal/user"
)

// Queue is the delayed-job queue as the scheduler sees it. Adapters must
// treat the notification id as a uniqueness key: enqueueing the same id
// twice yields one job.
type Queue interface {
	Enqueue(ctx context.Context, notificationID string, delay time.Duration) error
	Close() error
}

// Service orchestrates the reminder chain: one pending reminder per task,
// each send scheduling the next.
type Service struct {
	DB    *gorm.DB
	Store *Store
	Queue Queue
	Log   *zap.Logger
}

// TaskCreated carries the task.created payload fields the scheduler needs.
type TaskCreated struct {
	TaskID    string
	DreamID   string
	UserID    string
	StartDate time.Time
	Deadline  time.Time
}

// OnTaskCreated computes the pre-start reminder for a new task and persists
// plus enqueues it. Safe to replay: an occupied reminder slot makes it a
// no-op.
func (s *Service) OnTaskCreated(ctx context.Context, ev TaskCreated) error {
	profile, err := user.Profile(ctx, s.DB, ev.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.Log.Warn("task.created for unknown user", zap.String("user_id", ev.UserID))
			return nil
		}
		return err
	}

	pending, err := s.Store.HasPendingReminder(ctx, ev.TaskID)
	if err != nil {
		return err
	}
	if pending {
		s.Log.Debug("reminder slot occupied, skipping pre-start scheduling",
			zap.String("task_id", ev.TaskID))
		return nil
	}

	now := time.Now().UTC()
	for _, slot := range schedule.PreStartReminders(now, ev.StartDate, profile) {
		n := &Notification{
			ID:          uuid.NewString(),
			UserID:      ev.UserID,
			DreamID:     &ev.DreamID,
			TaskID:      &ev.TaskID,
			Type:        TypeReminder,
			Message:     slot.Reason,
			ScheduledAt: slot.At,
			Status:      StatusScheduled,
		}
		if err := s.createAndEnqueue(ctx, n); err != nil {
			return err
		}
		s.Log.Info("pre-start reminder scheduled",
			zap.String("task_id", ev.TaskID),
			zap.Time("scheduled_at", slot.At))
	}
	return nil
}

// OnReminderSent schedules the next link of the chain. Must only be called
// after the previous reminder was marked SENT. Terminal conditions (task
// gone, inactive, deadline passed, no legal slot) stop the chain quietly.
func (s *Service) OnReminderSent(ctx context.Context, sent *Notification) error {
	if sent.TaskID == nil || sent.Type != TypeReminder {
		return nil
	}
	taskID := *sent.TaskID

	var t task.Task
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Log.Info("task gone, reminder chain stops", zap.String("task_id", taskID))
			return nil
		}
		return err
	}
	if !t.Active() {
		s.Log.Info("task not active, reminder chain stops",
			zap.String("task_id", taskID), zap.String("status", t.Status))
		return nil
	}

	now := time.Now().UTC()
	if !now.Before(t.Deadline) {
		s.Log.Info("deadline passed, reminder chain stops", zap.String("task_id", taskID))
		return nil
	}

	profile, err := user.Profile(ctx, s.DB, sent.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.Log.Warn("user gone, reminder chain stops", zap.String("task_id", taskID))
			return nil
		}
		return err
	}

	pending, err := s.Store.HasPendingReminder(ctx, taskID)
	if err != nil {
		return err
	}
	if pending {
		s.Log.Debug("reminder slot already occupied", zap.String("task_id", taskID))
		return nil
	}

	slot, ok := schedule.ComputeNext(now, profile, t.Deadline, true)
	if !ok {
		s.Log.Info("no legal slot before deadline, reminder chain stops",
			zap.String("task_id", taskID))
		return nil
	}

	n := &Notification{
		ID:          uuid.NewString(),
		UserID:      sent.UserID,
		DreamID:     sent.DreamID,
		TaskID:      &taskID,
		Type:        TypeReminder,
		Message:     "", // generated at send time
		ScheduledAt: slot.At,
		Status:      StatusScheduled,
	}
	if err := s.createAndEnqueue(ctx, n); err != nil {
		return err
	}
	s.Log.Info("next reminder scheduled",
		zap.String("task_id", taskID),
		zap.Time("scheduled_at", slot.At))
	return nil
}

// OnTaskCompleted pulls every future reminder of the task so no in-flight
// job can re-arm the chain.
func (s *Service) OnTaskCompleted(ctx context.Context, taskID string) error {
	archived, err := s.Store.ArchiveForTask(ctx, taskID)
	if err != nil {
		return err
	}
	if archived > 0 {
		s.Log.Info("archived future notifications",
			zap.String("task_id", taskID), zap.Int64("count", archived))
	}
	return nil
}

// Immediate creates a notification due now (celebrations, progress checks).
func (s *Service) Immediate(ctx context.Context, userID string, dreamID, taskID *string, typ, message string) error {
	n := &Notification{
		ID:          uuid.NewString(),
		UserID:      userID,
		DreamID:     dreamID,
		TaskID:      taskID,
		Type:        typ,
		Message:     message,
		ScheduledAt: time.Now().UTC(),
		Status:      StatusScheduled,
	}
	return s.createAndEnqueue(ctx, n)
}

// createAndEnqueue writes the row first, then the job; a worker that picks
// up the job can therefore always find its row. An enqueue failure leaves a
// SCHEDULED row behind, which the worker's recovery sweep re-enqueues.
func (s *Service) createAndEnqueue(ctx context.Context, n *Notification) error {
	if err := s.Store.Create(ctx, n); err != nil {
		return err
	}

	delay := time.Until(n.ScheduledAt)
	if delay < 0 {
		delay = 0
	}
	if err := s.Queue.Enqueue(ctx, n.ID, delay); err != nil {
		s.Log.Error("enqueue failed, row left for recovery sweep",
			zap.String("notification_id", n.ID), zap.Error(err))
	}
	return nil
}
