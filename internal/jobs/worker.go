package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dreamplanner/internal/dispatch"
	"dreamplanner/internal/notification"
	"dreamplanner/internal/task"
	"dreamplanner/internal/user"
)

const (
	defaultConcurrency  = 10
	defaultPollInterval = time.Second
	defaultCallTimeout  = 10 * time.Second
	sweepEvery          = 30 // poll ticks between recovery sweeps
)

// Worker drains due jobs and performs the idempotent delivery transition:
// claim the notification, generate the message if empty, dispatch, mark
// sent, and ask the scheduler for the next link of the chain.
type Worker struct {
	ID         string
	Queue      *DBQueue
	Store      *notification.Store
	Scheduler  *notification.Service
	DB         *gorm.DB
	Dispatcher dispatch.Dispatcher
	Generator  dispatch.MessageGenerator
	Log        *zap.Logger

	Concurrency  int
	PollInterval time.Duration
	CallTimeout  time.Duration

	wg  sync.WaitGroup
	sem chan struct{}
}

// Run polls for due jobs until ctx is cancelled. Jobs already claimed keep
// processing after cancellation; call Drain to wait for them.
func (w *Worker) Run(ctx context.Context) {
	if w.Concurrency <= 0 {
		w.Concurrency = defaultConcurrency
	}
	if w.PollInterval <= 0 {
		w.PollInterval = defaultPollInterval
	}
	if w.CallTimeout <= 0 {
		w.CallTimeout = defaultCallTimeout
	}
	w.sem = make(chan struct{}, w.Concurrency)

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ticks++
			if ticks%sweepEvery == 0 {
				w.recoverScheduled(ctx)
			}
			w.claimLoop(ctx)
		}
	}
}

// Drain blocks until every in-flight job has finished. Never abandons a
// notification in PROCESSING.
func (w *Worker) Drain() {
	w.wg.Wait()
}

func (w *Worker) claimLoop(ctx context.Context) {
	for {
		select {
		case w.sem <- struct{}{}:
		default:
			return // pool saturated
		}

		job, err := w.Queue.ClaimDue(ctx, w.ID)
		if err != nil {
			<-w.sem
			w.Log.Error("job claim failed", zap.Error(err))
			return
		}
		if job == nil {
			<-w.sem
			return
		}

		w.wg.Add(1)
		go func(j *Job) {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			// Shutdown must not cancel an already-claimed delivery;
			// per-call timeouts still bound the external calls.
			w.Process(context.WithoutCancel(ctx), j)
		}(job)
	}
}

// Process handles one claimed job end to end. Exported for tests.
func (w *Worker) Process(ctx context.Context, job *Job) {
	n, err := w.Store.FindByID(ctx, job.NotificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			// Terminal: nothing to send, nothing to retry.
			w.Log.Warn("job for missing notification",
				zap.String("notification_id", job.NotificationID))
			_ = w.Queue.MarkDone(ctx, job.ID)
			return
		}
		w.retry(ctx, job, fmt.Errorf("load notification: %w", err))
		return
	}

	claimed, err := w.Store.ClaimProcessing(ctx, n.ID)
	if err != nil {
		w.retry(ctx, job, fmt.Errorf("claim notification: %w", err))
		return
	}
	if !claimed {
		// Another worker won, or the row was archived or already sent.
		w.Log.Debug("notification not claimable, skipping",
			zap.String("notification_id", n.ID), zap.String("status", n.Status))
		_ = w.Queue.MarkDone(ctx, job.ID)
		return
	}

	var u user.User
	if err := w.DB.WithContext(ctx).First(&u, "id = ?", n.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			w.Log.Warn("notification for missing user", zap.String("notification_id", n.ID))
			_ = w.Store.MarkFailed(ctx, n.ID)
			_ = w.Queue.MarkFailed(ctx, job.ID, "user not found")
			return
		}
		w.retry(ctx, job, fmt.Errorf("load user: %w", err))
		return
	}

	t := w.loadTask(ctx, n)
	msg, metadata := w.resolveMessage(ctx, n, &u, t)

	payload := dispatch.Payload{
		NotificationID: n.ID,
		Recipient:      u.Email,
		UserName:       u.Name,
		Type:           n.Type,
		Message:        msg,
		ScheduledAt:    n.ScheduledAt,
		Metadata:       metadata,
	}
	if t != nil {
		payload.TaskTitle = t.Title
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.CallTimeout)
	err = w.Dispatcher.Send(sendCtx, payload)
	cancel()
	if err != nil {
		w.Log.Warn("dispatch failed",
			zap.String("notification_id", n.ID),
			zap.Int("attempt", job.Attempts+1),
			zap.Error(err))
		_ = w.Store.MarkFailed(ctx, n.ID)
		w.retry(ctx, job, err)
		return
	}

	if err := w.Store.MarkSent(ctx, n.ID); err != nil {
		w.Log.Error("mark sent failed", zap.String("notification_id", n.ID), zap.Error(err))
	}
	_ = w.Queue.MarkDone(ctx, job.ID)
	w.Log.Info("notification sent",
		zap.String("notification_id", n.ID),
		zap.String("type", n.Type),
		zap.String("user_id", n.UserID))

	// Chain the next reminder only after this one is durably SENT.
	if err := w.Scheduler.OnReminderSent(ctx, n); err != nil {
		w.Log.Error("scheduling next reminder failed",
			zap.String("notification_id", n.ID), zap.Error(err))
	}
}

// resolveMessage generates the text lazily when the row carries none, and
// attaches progress quick-actions to reminders for still-active tasks.
func (w *Worker) resolveMessage(ctx context.Context, n *notification.Notification, u *user.User, t *task.Task) (string, json.RawMessage) {
	msg := n.Message
	metadata := n.Metadata

	if msg == "" {
		in := dispatch.GenerationInput{
			NotificationType: n.Type,
			Tone:             w.tone(ctx, n.UserID),
			TimeOfDay:        dispatch.TimeOfDay(time.Now().In(w.location(u))),
			Progress:         -1,
		}
		if t != nil {
			in.TaskTitle = t.Title
			in.Progress = t.Progress
		}

		genCtx, cancel := context.WithTimeout(ctx, w.CallTimeout)
		generated, err := w.Generator.Generate(genCtx, in)
		cancel()
		if err != nil || generated == "" {
			w.Log.Warn("message generation failed, using default",
				zap.String("notification_id", n.ID), zap.Error(err))
			generated = dispatch.DefaultMessage(n.Type)
		}
		msg = generated
	}

	if metadata == nil && n.Type == notification.TypeReminder && t != nil && t.Status != task.StatusCompleted {
		metadata = progressActions(*n.TaskID)
	}

	if msg != n.Message || len(metadata) != len(n.Metadata) {
		if err := w.Store.UpdateMessage(ctx, n.ID, msg, metadata); err != nil {
			w.Log.Error("persisting sent message failed",
				zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
	return msg, metadata
}

func (w *Worker) loadTask(ctx context.Context, n *notification.Notification) *task.Task {
	if n.TaskID == nil {
		return nil
	}
	var t task.Task
	if err := w.DB.WithContext(ctx).First(&t, "id = ?", *n.TaskID).Error; err != nil {
		return nil
	}
	return &t
}

func (w *Worker) tone(ctx context.Context, userID string) string {
	var pref user.Preference
	if err := w.DB.WithContext(ctx).First(&pref, "user_id = ?", userID).Error; err != nil {
		return user.ToneNeutral
	}
	return pref.MotivationTone
}

func (w *Worker) location(u *user.User) *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (w *Worker) retry(ctx context.Context, job *Job, cause error) {
	retried, err := w.Queue.RetryLater(ctx, job, cause.Error())
	if err != nil {
		w.Log.Error("retry bookkeeping failed", zap.Uint64("job_id", job.ID), zap.Error(err))
		return
	}
	if retried {
		w.Log.Info("job requeued",
			zap.Uint64("job_id", job.ID),
			zap.Int("attempt", job.Attempts+1),
			zap.Duration("backoff", Backoff(job.Attempts+1)))
	} else {
		w.Log.Error("job exhausted retries",
			zap.Uint64("job_id", job.ID),
			zap.String("notification_id", job.NotificationID))
	}
}

// recoverScheduled re-enqueues due SCHEDULED rows whose job insert was lost
// (crash between row write and enqueue). The unique job key makes this a
// no-op for healthy rows.
func (w *Worker) recoverScheduled(ctx context.Context) {
	rows, err := w.Store.DueScheduled(ctx, time.Now().UTC(), 100)
	if err != nil {
		w.Log.Error("recovery sweep failed", zap.Error(err))
		return
	}
	for i := range rows {
		if err := w.Queue.Enqueue(ctx, rows[i].ID, 0); err != nil {
			w.Log.Error("recovery enqueue failed",
				zap.String("notification_id", rows[i].ID), zap.Error(err))
		}
	}
}

func progressActions(taskID string) json.RawMessage {
	actions := map[string]any{
		"actions": []map[string]any{
			{"label": "10%", "api": "POST /tasks/" + taskID + "/progress", "value": 10},
			{"label": "25%", "api": "POST /tasks/" + taskID + "/progress", "value": 25},
			{"label": "50%", "api": "POST /tasks/" + taskID + "/progress", "value": 50},
			{"label": "Skip for now", "api": nil},
		},
	}
	b, _ := json.Marshal(actions)
	return b
}
