package event

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// HandlerFunc reacts to one event. Returning an error marks the event
// FAILED without touching its siblings.
type HandlerFunc func(ctx context.Context, ev DomainEvent) error

// Dispatcher polls the event log and fans pending events out to their
// handlers. One failing event never blocks the batch.
type Dispatcher struct {
	Events       *Log
	Handlers     map[string]HandlerFunc
	Log          *zap.Logger
	PollInterval time.Duration
	BatchSize    int
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d.PollInterval <= 0 {
		d.PollInterval = 5 * time.Second
	}
	if d.BatchSize <= 0 {
		d.BatchSize = 100
	}

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain processes every pending event currently in the log.
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		evs, err := d.Events.Unprocessed(ctx, d.BatchSize)
		if err != nil {
			d.Log.Error("loading pending events failed", zap.Error(err))
			return
		}
		if len(evs) == 0 {
			return
		}
		for i := range evs {
			d.dispatch(ctx, evs[i])
		}
		if len(evs) < d.BatchSize {
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev DomainEvent) {
	h, ok := d.Handlers[ev.EventType]
	if !ok {
		d.Log.Warn("no handler for event type",
			zap.String("event_id", ev.ID), zap.String("event_type", ev.EventType))
		_ = d.Events.MarkProcessed(ctx, ev.ID)
		return
	}

	if err := h(ctx, ev); err != nil {
		d.Log.Error("event handler failed",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.EventType),
			zap.Error(err))
		_ = d.Events.MarkFailed(ctx, ev.ID, err.Error())
		return
	}
	if err := d.Events.MarkProcessed(ctx, ev.ID); err != nil {
		d.Log.Error("marking event processed failed",
			zap.String("event_id", ev.ID), zap.Error(err))
	}
}

func decode[T any](ev DomainEvent) (T, error) {
	var out T
	err := json.Unmarshal(ev.Payload, &out)
	return out, err
}
