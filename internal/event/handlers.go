package event

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dreamplanner/internal/dedup"
	"dreamplanner/internal/dream"
	"dreamplanner/internal/notification"
	"dreamplanner/internal/task"
)

// Handlers binds the event types the app emits to their reactions: reminder
// scheduling, chain teardown, and one-shot motivational sends. The guard
// keeps the one-shots from duplicating when an event is replayed.
type Handlers struct {
	DB        *gorm.DB
	Scheduler *notification.Service
	Guard     dedup.Guard
	Log       *zap.Logger
}

func (h *Handlers) Map() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"task.created":          h.onTaskCreated,
		"task.completed":        h.onTaskCompleted,
		"task.progress_updated": h.onTaskProgress,
		"dream.created":         h.onDreamCreated,
		"dream.completed":       h.onDreamCompleted,
	}
}

type taskCreatedPayload struct {
	TaskID    string `json:"taskId"`
	DreamID   string `json:"dreamId"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	StartDate string `json:"startDate"`
	Deadline  string `json:"deadline"`
}

func (h *Handlers) onTaskCreated(ctx context.Context, ev DomainEvent) error {
	p, err := decode[taskCreatedPayload](ev)
	if err != nil {
		return fmt.Errorf("decode task.created: %w", err)
	}
	start, err := time.Parse(time.RFC3339, p.StartDate)
	if err != nil {
		return fmt.Errorf("task.created startDate: %w", err)
	}
	deadline, err := time.Parse(time.RFC3339, p.Deadline)
	if err != nil {
		return fmt.Errorf("task.created deadline: %w", err)
	}
	return h.Scheduler.OnTaskCreated(ctx, notification.TaskCreated{
		TaskID:    p.TaskID,
		DreamID:   p.DreamID,
		UserID:    p.UserID,
		StartDate: start,
		Deadline:  deadline,
	})
}

type taskRefPayload struct {
	TaskID  string `json:"taskId"`
	DreamID string `json:"dreamId"`
	UserID  string `json:"userId"`
}

func (h *Handlers) onTaskCompleted(ctx context.Context, ev DomainEvent) error {
	p, err := decode[taskRefPayload](ev)
	if err != nil {
		return fmt.Errorf("decode task.completed: %w", err)
	}

	if err := h.Scheduler.OnTaskCompleted(ctx, p.TaskID); err != nil {
		return err
	}

	seen, err := h.Guard.Seen(ctx, "celebrate:task:"+p.TaskID)
	if err != nil {
		h.Log.Warn("dedup check failed, sending anyway", zap.Error(err))
	} else if seen {
		return nil
	}

	msg := "You did it! Task complete."
	var t task.Task
	if err := h.DB.WithContext(ctx).First(&t, "id = ?", p.TaskID).Error; err == nil {
		msg = fmt.Sprintf("You did it! %q is done.", t.Title)
	}
	return h.Scheduler.Immediate(ctx, p.UserID, &p.DreamID, &p.TaskID, notification.TypeMotivational, msg)
}

type taskProgressPayload struct {
	TaskID   string `json:"taskId"`
	DreamID  string `json:"dreamId"`
	UserID   string `json:"userId"`
	Progress int    `json:"progress"`
}

// onTaskProgress sends a check-in when a milestone quarter is reached. The
// guard key is the milestone itself, so resubmitting 50% twice sends once.
func (h *Handlers) onTaskProgress(ctx context.Context, ev DomainEvent) error {
	p, err := decode[taskProgressPayload](ev)
	if err != nil {
		return fmt.Errorf("decode task.progress_updated: %w", err)
	}
	milestone := (p.Progress / 25) * 25
	if milestone == 0 || p.Progress >= 100 {
		// 100% arrives via task.completed; below 25% nothing fires.
		return nil
	}

	key := fmt.Sprintf("progress:%s:%d", p.TaskID, milestone)
	seen, err := h.Guard.Seen(ctx, key)
	if err != nil {
		h.Log.Warn("dedup check failed, sending anyway", zap.Error(err))
	} else if seen {
		return nil
	}

	msg := fmt.Sprintf("You're %d%% of the way there. How is it going?", p.Progress)
	var t task.Task
	if err := h.DB.WithContext(ctx).First(&t, "id = ?", p.TaskID).Error; err == nil {
		msg = fmt.Sprintf("You're %d%% of the way through %q. How is it going?", p.Progress, t.Title)
	}
	return h.Scheduler.Immediate(ctx, p.UserID, &p.DreamID, &p.TaskID, notification.TypeProgressCheck, msg)
}

type dreamCreatedPayload struct {
	DreamID  string `json:"dreamId"`
	UserID   string `json:"userId"`
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
}

func (h *Handlers) onDreamCreated(ctx context.Context, ev DomainEvent) error {
	p, err := decode[dreamCreatedPayload](ev)
	if err != nil {
		return fmt.Errorf("decode dream.created: %w", err)
	}

	seen, err := h.Guard.Seen(ctx, "welcome:dream:"+p.DreamID)
	if err != nil {
		h.Log.Warn("dedup check failed, sending anyway", zap.Error(err))
	} else if seen {
		return nil
	}

	msg := fmt.Sprintf("%q is on the board!", p.Title)
	if deadline, err := time.Parse(time.RFC3339, p.Deadline); err == nil {
		days := int(math.Ceil(time.Until(deadline).Hours() / 24))
		if days > 0 {
			msg = fmt.Sprintf("%q is on the board. %d days to make it happen!", p.Title, days)
		}
	}
	return h.Scheduler.Immediate(ctx, p.UserID, &p.DreamID, nil, notification.TypeMotivational, msg)
}

type dreamRefPayload struct {
	DreamID string `json:"dreamId"`
	UserID  string `json:"userId"`
}

func (h *Handlers) onDreamCompleted(ctx context.Context, ev DomainEvent) error {
	p, err := decode[dreamRefPayload](ev)
	if err != nil {
		return fmt.Errorf("decode dream.completed: %w", err)
	}

	seen, err := h.Guard.Seen(ctx, "celebrate:dream:"+p.DreamID)
	if err != nil {
		h.Log.Warn("dedup check failed, sending anyway", zap.Error(err))
	} else if seen {
		return nil
	}

	msg := "Dream achieved. Congratulations!"
	var d dream.Dream
	if err := h.DB.WithContext(ctx).First(&d, "id = ?", p.DreamID).Error; err == nil {
		msg = fmt.Sprintf("You achieved %q. Congratulations!", d.Title)
	}
	return h.Scheduler.Immediate(ctx, p.UserID, &p.DreamID, nil, notification.TypeMotivational, msg)
}
