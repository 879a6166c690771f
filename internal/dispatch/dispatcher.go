package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Payload is what leaves the pipeline towards the transport.
type Payload struct {
	NotificationID string          `json:"notificationId"`
	Recipient      string          `json:"recipient"` // email address
	UserName       string          `json:"userName"`
	Type           string          `json:"type"`
	Message        string          `json:"message"`
	TaskTitle      string          `json:"taskTitle,omitempty"`
	DreamTitle     string          `json:"dreamTitle,omitempty"`
	ScheduledAt    time.Time       `json:"scheduledAt"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// Dispatcher delivers a payload to the user. The real email/push transport
// lives behind this interface; a nil error means accepted for delivery.
type Dispatcher interface {
	Send(ctx context.Context, p Payload) error
	Close() error
}

// LogDispatcher writes the notification to the log, chat style. Stands in
// for a real transport in development.
type LogDispatcher struct {
	Log *zap.Logger
}

func (d *LogDispatcher) Send(_ context.Context, p Payload) error {
	d.Log.Info("notification dispatched",
		zap.String("notification_id", p.NotificationID),
		zap.String("to", p.Recipient),
		zap.String("type", p.Type),
		zap.String("message", p.Message),
		zap.Bool("has_actions", len(p.Metadata) > 0))
	return nil
}

func (d *LogDispatcher) Close() error { return nil }
