package notification

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dreamplanner/internal/task"
	"dreamplanner/internal/user"
)

type fakeQueue struct {
	enqueued []string
	delays   []time.Duration
}

func (q *fakeQueue) Enqueue(_ context.Context, notificationID string, delay time.Duration) error {
	q.enqueued = append(q.enqueued, notificationID)
	q.delays = append(q.delays, delay)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func newService(t *testing.T) (*Service, *fakeQueue, *gorm.DB) {
	t.Helper()
	gdb := openDB(t)
	q := &fakeQueue{}
	s := &Service{
		DB:    gdb,
		Store: &Store{DB: gdb},
		Queue: q,
		Log:   zap.NewNop(),
	}
	return s, q, gdb
}

func seedUser(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	require.NoError(t, gdb.Create(&user.User{
		ID: "u1", Email: "ada@example.com", Name: "Ada", Timezone: "UTC",
	}).Error)
	require.NoError(t, gdb.Create(&user.Preference{
		UserID:                "u1",
		NotificationFrequency: 60,
		// Zero-length window so assertions don't depend on the wall clock.
		SleepStart:     "00:00",
		SleepEnd:       "00:00",
		QuietHours:     pq.StringArray{},
		MotivationTone: user.ToneNeutral,
	}).Error)
}

func seedTask(t *testing.T, gdb *gorm.DB, start, deadline time.Time, status string) {
	t.Helper()
	require.NoError(t, gdb.Create(&task.Task{
		ID: "t1", UserID: "u1", DreamID: "d1", Title: "Write chapter one",
		StartDate: start, Deadline: deadline, Status: status,
	}).Error)
}

func taskCreated(start, deadline time.Time) TaskCreated {
	return TaskCreated{
		TaskID: "t1", DreamID: "d1", UserID: "u1",
		StartDate: start, Deadline: deadline,
	}
}

func TestOnTaskCreatedSchedulesAheadOfStart(t *testing.T) {
	s, q, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	start := now.Add(3 * time.Hour)
	seedTask(t, gdb, start, now.Add(48*time.Hour), task.StatusPending)

	require.NoError(t, s.OnTaskCreated(ctx, taskCreated(start, now.Add(48*time.Hour))))

	var rows []Notification
	require.NoError(t, gdb.Where("task_id = ?", "t1").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, TypeReminder, rows[0].Type)
	assert.Equal(t, StatusScheduled, rows[0].Status)
	assert.Equal(t, "Get ready to start your task soon!", rows[0].Message)
	assert.WithinDuration(t, start.Add(-time.Hour), rows[0].ScheduledAt, 2*time.Second)

	require.Len(t, q.enqueued, 1)
	assert.Equal(t, rows[0].ID, q.enqueued[0])
	assert.InDelta(t, (2 * time.Hour).Seconds(), q.delays[0].Seconds(), 5)
}

func TestOnTaskCreatedImminentStart(t *testing.T) {
	s, _, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	start := now.Add(30 * time.Minute)
	seedTask(t, gdb, start, now.Add(48*time.Hour), task.StatusPending)

	require.NoError(t, s.OnTaskCreated(ctx, taskCreated(start, now.Add(48*time.Hour))))

	var rows []Notification
	require.NoError(t, gdb.Where("task_id = ?", "t1").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "It's time to begin your task!", rows[0].Message)
	assert.WithinDuration(t, start, rows[0].ScheduledAt, 2*time.Second)
}

func TestOnTaskCreatedAlreadyRunning(t *testing.T) {
	s, q, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	start := now.Add(-2 * time.Hour)
	seedTask(t, gdb, start, now.Add(48*time.Hour), task.StatusInProgress)

	require.NoError(t, s.OnTaskCreated(ctx, taskCreated(start, now.Add(48*time.Hour))))

	// Falls back to the frequency cadence from now.
	var rows []Notification
	require.NoError(t, gdb.Where("task_id = ?", "t1").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ScheduledAt.After(now))
	assert.Len(t, q.enqueued, 1)
}

func TestOnTaskCreatedSkipsWhenSlotOccupied(t *testing.T) {
	s, q, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	start := now.Add(3 * time.Hour)
	seedTask(t, gdb, start, now.Add(48*time.Hour), task.StatusPending)

	existing := newReminder("u1", "t1", now.Add(time.Hour), StatusScheduled)
	require.NoError(t, s.Store.Create(ctx, existing))

	require.NoError(t, s.OnTaskCreated(ctx, taskCreated(start, now.Add(48*time.Hour))))

	var count int64
	require.NoError(t, gdb.Model(&Notification{}).Where("task_id = ?", "t1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Empty(t, q.enqueued)
}

func TestOnTaskCreatedUnknownUserIsNoop(t *testing.T) {
	s, q, gdb := newService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.OnTaskCreated(ctx, taskCreated(now.Add(time.Hour), now.Add(48*time.Hour))))

	var count int64
	require.NoError(t, gdb.Model(&Notification{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, q.enqueued)
}

func TestOnReminderSentChainsAtFrequency(t *testing.T) {
	s, q, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	seedTask(t, gdb, now.Add(-2*time.Hour), now.Add(48*time.Hour), task.StatusInProgress)

	sent := newReminder("u1", "t1", now, StatusSent)
	require.NoError(t, s.Store.Create(ctx, sent))

	require.NoError(t, s.OnReminderSent(ctx, sent))

	var rows []Notification
	require.NoError(t, gdb.
		Where("task_id = ? AND status = ?", "t1", StatusScheduled).
		Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Message)
	assert.True(t, rows[0].ScheduledAt.After(now))
	assert.Len(t, q.enqueued, 1)
}

func TestOnReminderSentStopsForInactiveTask(t *testing.T) {
	s, q, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	seedTask(t, gdb, now.Add(-2*time.Hour), now.Add(48*time.Hour), task.StatusCompleted)

	sent := newReminder("u1", "t1", now, StatusSent)
	require.NoError(t, s.Store.Create(ctx, sent))

	require.NoError(t, s.OnReminderSent(ctx, sent))

	var count int64
	require.NoError(t, gdb.Model(&Notification{}).
		Where("task_id = ? AND status = ?", "t1", StatusScheduled).
		Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, q.enqueued)
}

func TestOnReminderSentStopsPastDeadline(t *testing.T) {
	s, q, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	seedTask(t, gdb, now.Add(-48*time.Hour), now.Add(-time.Minute), task.StatusInProgress)

	sent := newReminder("u1", "t1", now.Add(-time.Hour), StatusSent)
	require.NoError(t, s.Store.Create(ctx, sent))

	require.NoError(t, s.OnReminderSent(ctx, sent))

	var count int64
	require.NoError(t, gdb.Model(&Notification{}).
		Where("task_id = ? AND status = ?", "t1", StatusScheduled).
		Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, q.enqueued)
}

func TestOnReminderSentRespectsOccupiedSlot(t *testing.T) {
	s, q, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	seedTask(t, gdb, now.Add(-2*time.Hour), now.Add(48*time.Hour), task.StatusInProgress)

	sent := newReminder("u1", "t1", now, StatusSent)
	require.NoError(t, s.Store.Create(ctx, sent))
	occupying := newReminder("u1", "t1", now.Add(time.Hour), StatusScheduled)
	require.NoError(t, s.Store.Create(ctx, occupying))

	require.NoError(t, s.OnReminderSent(ctx, sent))

	var count int64
	require.NoError(t, gdb.Model(&Notification{}).
		Where("task_id = ? AND status = ?", "t1", StatusScheduled).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Empty(t, q.enqueued)
}

func TestOnReminderSentIgnoresNonReminders(t *testing.T) {
	s, q, gdb := newService(t)
	seedUser(t, gdb)
	ctx := context.Background()
	now := time.Now().UTC()
	seedTask(t, gdb, now.Add(-2*time.Hour), now.Add(48*time.Hour), task.StatusInProgress)

	taskID := "t1"
	sent := &Notification{
		ID: "m1", UserID: "u1", TaskID: &taskID,
		Type: TypeMotivational, Message: "nice", ScheduledAt: now, Status: StatusSent,
	}
	require.NoError(t, s.Store.Create(ctx, sent))

	require.NoError(t, s.OnReminderSent(ctx, sent))
	assert.Empty(t, q.enqueued)
}

func TestOnTaskCompletedArchivesFutureReminders(t *testing.T) {
	s, _, gdb := newService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	future := newReminder("u1", "t1", now.Add(time.Hour), StatusScheduled)
	delivered := newReminder("u1", "t1", now.Add(-time.Hour), StatusSent)
	require.NoError(t, s.Store.Create(ctx, future))
	require.NoError(t, s.Store.Create(ctx, delivered))

	require.NoError(t, s.OnTaskCompleted(ctx, "t1"))

	var stored Notification
	require.NoError(t, gdb.First(&stored, "id = ?", future.ID).Error)
	assert.Equal(t, StatusArchived, stored.Status)
	stored = Notification{}
	require.NoError(t, gdb.First(&stored, "id = ?", delivered.ID).Error)
	assert.Equal(t, StatusSent, stored.Status)
}

func TestImmediateEnqueuesWithNoDelay(t *testing.T) {
	s, q, gdb := newService(t)
	ctx := context.Background()

	dreamID := "d1"
	require.NoError(t, s.Immediate(ctx, "u1", &dreamID, nil, TypeMotivational, "You did it!"))

	var rows []Notification
	require.NoError(t, gdb.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, TypeMotivational, rows[0].Type)
	assert.Equal(t, "You did it!", rows[0].Message)
	require.Len(t, q.enqueued, 1)
	assert.LessOrEqual(t, q.delays[0], time.Second)
}
