package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dreamplanner/internal/dispatch"
	"dreamplanner/internal/notification"
	"dreamplanner/internal/task"
	"dreamplanner/internal/user"
)

type fakeDispatcher struct {
	mu   sync.Mutex
	err  error
	sent []dispatch.Payload
}

func (f *fakeDispatcher) Send(_ context.Context, p dispatch.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeDispatcher) Close() error { return nil }

func (f *fakeDispatcher) payloads() []dispatch.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatch.Payload(nil), f.sent...)
}

func newWorker(t *testing.T, gdb *gorm.DB, d dispatch.Dispatcher) *Worker {
	t.Helper()
	store := &notification.Store{DB: gdb}
	queue := &DBQueue{DB: gdb}
	return &Worker{
		ID:    "w-test",
		Queue: queue,
		Store: store,
		Scheduler: &notification.Service{
			DB: gdb, Store: store, Queue: queue, Log: zap.NewNop(),
		},
		DB:          gdb,
		Dispatcher:  d,
		Generator:   dispatch.StaticGenerator{},
		Log:         zap.NewNop(),
		CallTimeout: 2 * time.Second,
	}
}

// seedReminder sets up a user with defaults, one active task, and one due
// reminder for it.
func seedReminder(t *testing.T, gdb *gorm.DB, message string) *notification.Notification {
	t.Helper()
	now := time.Now().UTC()

	require.NoError(t, gdb.Create(&user.User{
		ID: "u1", Email: "ada@example.com", Name: "Ada", Timezone: "UTC",
	}).Error)
	require.NoError(t, gdb.Create(&user.Preference{
		UserID:                "u1",
		NotificationFrequency: 60,
		// Zero-length window so chain assertions don't depend on the wall clock.
		SleepStart:     "00:00",
		SleepEnd:       "00:00",
		QuietHours:     pq.StringArray{},
		MotivationTone: user.ToneNeutral,
	}).Error)
	require.NoError(t, gdb.Create(&task.Task{
		ID: "t1", UserID: "u1", DreamID: "d1", Title: "Write chapter one",
		StartDate: now.Add(-2 * time.Hour),
		Deadline:  now.Add(48 * time.Hour),
		Status:    task.StatusPending,
	}).Error)

	taskID := "t1"
	dreamID := "d1"
	n := &notification.Notification{
		ID:          uuid.NewString(),
		UserID:      "u1",
		DreamID:     &dreamID,
		TaskID:      &taskID,
		Type:        notification.TypeReminder,
		Message:     message,
		ScheduledAt: now,
		Status:      notification.StatusScheduled,
	}
	require.NoError(t, gdb.Create(n).Error)
	return n
}

func claimJobFor(t *testing.T, w *Worker, notificationID string) *Job {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, w.Queue.Enqueue(ctx, notificationID, 0))
	j, err := w.Queue.ClaimDue(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, j)
	require.Equal(t, notificationID, j.NotificationID)
	return j
}

func TestProcessSendsAndChainsNextReminder(t *testing.T) {
	gdb := openDB(t)
	fake := &fakeDispatcher{}
	w := newWorker(t, gdb, fake)
	ctx := context.Background()

	n := seedReminder(t, gdb, "It's time to begin your task!")
	j := claimJobFor(t, w, n.ID)

	w.Process(ctx, j)

	sent := fake.payloads()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.com", sent[0].Recipient)
	assert.Equal(t, "It's time to begin your task!", sent[0].Message)
	assert.Equal(t, "Write chapter one", sent[0].TaskTitle)

	var stored notification.Notification
	require.NoError(t, gdb.First(&stored, "id = ?", n.ID).Error)
	assert.Equal(t, notification.StatusSent, stored.Status)

	var job Job
	require.NoError(t, gdb.First(&job, "id = ?", j.ID).Error)
	assert.Equal(t, StatusDone, job.Status)

	// The send arms the next link: a fresh scheduled reminder for the
	// task, message left for the worker to generate, with its own job.
	var next []notification.Notification
	require.NoError(t, gdb.
		Where("task_id = ? AND type = ? AND status = ?",
			"t1", notification.TypeReminder, notification.StatusScheduled).
		Find(&next).Error)
	require.Len(t, next, 1)
	assert.NotEqual(t, n.ID, next[0].ID)
	assert.Empty(t, next[0].Message)
	assert.True(t, next[0].ScheduledAt.After(time.Now().UTC()))

	var nextJobs int64
	require.NoError(t, gdb.Model(&Job{}).
		Where("notification_id = ?", next[0].ID).Count(&nextJobs).Error)
	assert.EqualValues(t, 1, nextJobs)
}

func TestProcessDispatchFailureMarksFailedAndRetries(t *testing.T) {
	gdb := openDB(t)
	fake := &fakeDispatcher{err: errors.New("smtp unreachable")}
	w := newWorker(t, gdb, fake)
	ctx := context.Background()

	n := seedReminder(t, gdb, "It's time to begin your task!")
	j := claimJobFor(t, w, n.ID)

	w.Process(ctx, j)

	var stored notification.Notification
	require.NoError(t, gdb.First(&stored, "id = ?", n.ID).Error)
	assert.Equal(t, notification.StatusFailed, stored.Status)

	var job Job
	require.NoError(t, gdb.First(&job, "id = ?", j.ID).Error)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, job.RunAt.After(time.Now().UTC().Add(500*time.Millisecond)))

	// A requeued FAILED notification is claimable again on the next run.
	claimed, err := w.Store.ClaimProcessing(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestProcessExhaustedJobGoesTerminal(t *testing.T) {
	gdb := openDB(t)
	fake := &fakeDispatcher{err: errors.New("smtp unreachable")}
	w := newWorker(t, gdb, fake)
	ctx := context.Background()

	n := seedReminder(t, gdb, "It's time to begin your task!")
	j := claimJobFor(t, w, n.ID)
	j.Attempts = j.MaxAttempts - 1

	w.Process(ctx, j)

	var job Job
	require.NoError(t, gdb.First(&job, "id = ?", j.ID).Error)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestProcessSkipsArchivedNotification(t *testing.T) {
	gdb := openDB(t)
	fake := &fakeDispatcher{}
	w := newWorker(t, gdb, fake)
	ctx := context.Background()

	n := seedReminder(t, gdb, "It's time to begin your task!")
	require.NoError(t, gdb.Model(&notification.Notification{}).
		Where("id = ?", n.ID).
		Update("status", notification.StatusArchived).Error)
	j := claimJobFor(t, w, n.ID)

	w.Process(ctx, j)

	assert.Empty(t, fake.payloads())

	var stored notification.Notification
	require.NoError(t, gdb.First(&stored, "id = ?", n.ID).Error)
	assert.Equal(t, notification.StatusArchived, stored.Status)

	var job Job
	require.NoError(t, gdb.First(&job, "id = ?", j.ID).Error)
	assert.Equal(t, StatusDone, job.Status)
}

func TestProcessMissingNotificationCompletesJob(t *testing.T) {
	gdb := openDB(t)
	fake := &fakeDispatcher{}
	w := newWorker(t, gdb, fake)
	ctx := context.Background()

	j := claimJobFor(t, w, "no-such-notification")
	w.Process(ctx, j)

	assert.Empty(t, fake.payloads())

	var job Job
	require.NoError(t, gdb.First(&job, "id = ?", j.ID).Error)
	assert.Equal(t, StatusDone, job.Status)
}

func TestProcessGeneratesMessageWhenEmpty(t *testing.T) {
	gdb := openDB(t)
	fake := &fakeDispatcher{}
	w := newWorker(t, gdb, fake)
	ctx := context.Background()

	n := seedReminder(t, gdb, "")
	j := claimJobFor(t, w, n.ID)

	w.Process(ctx, j)

	sent := fake.payloads()
	require.Len(t, sent, 1)
	assert.NotEmpty(t, sent[0].Message)
	assert.Contains(t, sent[0].Message, "Write chapter one")

	// The generated text and quick actions are persisted with the row.
	var stored notification.Notification
	require.NoError(t, gdb.First(&stored, "id = ?", n.ID).Error)
	assert.Equal(t, sent[0].Message, stored.Message)
	assert.NotEmpty(t, stored.Metadata)
}
