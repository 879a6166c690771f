package db

import (
	"fmt"

	"dreamplanner/internal/dream"
	"dreamplanner/internal/event"
	"dreamplanner/internal/jobs"
	"dreamplanner/internal/notification"
	"dreamplanner/internal/task"
	"dreamplanner/internal/user"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&user.User{},
		&user.Preference{},
		&dream.Dream{},
		&task.Task{},
		&notification.Notification{},
		&event.DomainEvent{},
		&jobs.Job{},
	}
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}

	// At most one live reminder per task. Scoped to REMINDER so a
	// celebration for the same task never collides with it.
	if err := gdb.Exec(`
create unique index if not exists uq_notifications_live_reminder
on notifications(task_id)
where task_id is not null
  and type = 'REMINDER'
  and status in ('SCHEDULED', 'PROCESSING');
`).Error; err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_notifications_user_sched on notifications(user_id, scheduled_at desc);`,
		`create index if not exists idx_notifications_due on notifications(status, scheduled_at);`,
		`create index if not exists idx_tasks_user on tasks(user_id, status);`,
		`create index if not exists idx_tasks_dream on tasks(dream_id);`,
		`create index if not exists idx_events_pending on domain_events(status, created_at);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
