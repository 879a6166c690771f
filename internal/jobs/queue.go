package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	backoffBase  = time.Second
	backoffCap   = 10 * time.Minute
	stuckTimeout = 5 * time.Minute
	claimWindow  = 5
)

// DBQueue is the delayed job queue on the jobs table. It satisfies the
// scheduler's Queue interface and gives the delivery worker its claim and
// retry primitives.
type DBQueue struct {
	DB *gorm.DB
}

// Enqueue inserts one job per notification id; duplicates are dropped by
// the unique key, not reported.
func (q *DBQueue) Enqueue(ctx context.Context, notificationID string, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	j := Job{
		NotificationID: notificationID,
		RunAt:          time.Now().UTC().Add(delay),
		Status:         StatusPending,
		MaxAttempts:    5,
	}
	return q.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notification_id"}},
		DoNothing: true,
	}).Create(&j).Error
}

func (q *DBQueue) Close() error { return nil }

// ClaimDue atomically claims one due job. The conditional status update is
// what makes concurrent workers safe: whoever flips PENDING to RUNNING owns
// the job, everyone else moves on.
func (q *DBQueue) ClaimDue(ctx context.Context, workerID string) (*Job, error) {
	now := time.Now().UTC()

	// Requeue jobs a crashed worker left RUNNING.
	q.DB.WithContext(ctx).Model(&Job{}).
		Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", StatusRunning, now.Add(-stuckTimeout)).
		Updates(map[string]any{"status": StatusPending, "locked_by": nil, "locked_at": nil})

	var candidates []Job
	err := q.DB.WithContext(ctx).
		Where("status = ? AND run_at <= ?", StatusPending, now).
		Order("run_at asc").
		Limit(claimWindow).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		res := q.DB.WithContext(ctx).Model(&Job{}).
			Where("id = ? AND status = ?", candidates[i].ID, StatusPending).
			Updates(map[string]any{
				"status":    StatusRunning,
				"locked_by": workerID,
				"locked_at": now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			j := candidates[i]
			j.Status = StatusRunning
			j.LockedBy = &workerID
			j.LockedAt = &now
			return &j, nil
		}
		// Another worker won this one; try the next candidate.
	}
	return nil, nil
}

func (q *DBQueue) MarkDone(ctx context.Context, id uint64) error {
	return q.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Update("status", StatusDone).Error
}

func (q *DBQueue) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return q.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": StatusFailed, "last_error": errMsg}).Error
}

// RetryLater requeues a failed attempt with exponential backoff, or marks
// the job failed once attempts are exhausted. Returns whether a retry was
// scheduled.
func (q *DBQueue) RetryLater(ctx context.Context, j *Job, errMsg string) (bool, error) {
	attempts := j.Attempts + 1
	if attempts >= j.MaxAttempts {
		return false, q.MarkFailed(ctx, j.ID, errMsg)
	}

	err := q.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", j.ID).
		Updates(map[string]any{
			"status":     StatusPending,
			"attempts":   attempts,
			"run_at":     time.Now().UTC().Add(Backoff(attempts)),
			"locked_by":  nil,
			"locked_at":  nil,
			"last_error": errMsg,
		}).Error
	return err == nil, err
}

// Backoff starts at 1s and doubles per attempt, capped.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := backoffBase << (attempt - 1)
	if d > backoffCap || d <= 0 {
		return backoffCap
	}
	return d
}
