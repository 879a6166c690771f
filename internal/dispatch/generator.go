package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// GenerationInput is the context handed to the message generator.
type GenerationInput struct {
	NotificationType string
	Tone             string
	TaskTitle        string
	DreamTitle       string
	Progress         int // percent, -1 when unknown
	TimeOfDay        string
}

// MessageGenerator produces the notification text. The AI-backed generator
// is an external collaborator; callers must fall back to DefaultMessage on
// any failure.
type MessageGenerator interface {
	Generate(ctx context.Context, in GenerationInput) (string, error)
}

// DefaultMessage is the static per-type fallback.
func DefaultMessage(notificationType string) string {
	switch notificationType {
	case "REMINDER":
		return "Time to check in on your task!"
	case "MOTIVATIONAL":
		return "Keep going!"
	case "PROGRESS_CHECK":
		return "How is your task coming along?"
	case "SYSTEM":
		return "New notification"
	}
	return "Check your DreamPlanner"
}

// TimeOfDay buckets an instant the way the generator expects.
func TimeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "morning"
	case h >= 17:
		return "evening"
	default:
		return "afternoon"
	}
}

// StaticGenerator is the in-process stand-in for the LLM collaborator:
// tone- and time-of-day-aware templates, no network.
type StaticGenerator struct{}

func (StaticGenerator) Generate(_ context.Context, in GenerationInput) (string, error) {
	subject := in.TaskTitle
	if subject == "" {
		subject = in.DreamTitle
	}
	if subject == "" {
		return DefaultMessage(in.NotificationType), nil
	}

	switch in.NotificationType {
	case "REMINDER":
		return reminderText(in, subject), nil
	case "PROGRESS_CHECK":
		return fmt.Sprintf("Quick check-in: how far along is %q?", subject), nil
	case "MOTIVATIONAL":
		return motivationalText(in, subject), nil
	}
	return DefaultMessage(in.NotificationType), nil
}

func reminderText(in GenerationInput, subject string) string {
	if in.TimeOfDay == "morning" {
		return fmt.Sprintf("Good morning! A fresh start on %q awaits.", subject)
	}
	if in.Progress > 0 {
		return fmt.Sprintf("Nice, %q is at %d%%. Keep the momentum going!", subject, in.Progress)
	}
	switch in.Tone {
	case "HARSH", "FEAR":
		return fmt.Sprintf("The clock is ticking on %q. Time to make a move.", subject)
	case "LOGICAL":
		return fmt.Sprintf("Next step on %q is due. A short session now keeps the plan on track.", subject)
	case "POSITIVE", "OPTIMISTIC":
		return fmt.Sprintf("You've got this! A little time on %q goes a long way.", subject)
	}
	return fmt.Sprintf("Gentle nudge: %q could use some attention.", subject)
}

func motivationalText(in GenerationInput, subject string) string {
	switch in.Tone {
	case "POSITIVE", "OPTIMISTIC":
		return fmt.Sprintf("Amazing progress on %q, celebrate it!", subject)
	case "LOGICAL":
		return fmt.Sprintf("Milestone reached on %q. The plan is working.", subject)
	}
	return fmt.Sprintf("Keep going, %q is getting closer every day.", subject)
}

// BreakerGenerator wraps a generator with a circuit breaker so a flapping
// external generator degrades to the static fallback instead of slowing the
// worker pool.
type BreakerGenerator struct {
	inner   MessageGenerator
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerGenerator(inner MessageGenerator) *BreakerGenerator {
	settings := gobreaker.Settings{
		Name:        "message-generator",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
	return &BreakerGenerator{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *BreakerGenerator) Generate(ctx context.Context, in GenerationInput) (string, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		return g.inner.Generate(ctx, in)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
