package db

import (
	"fmt"

	"github.com/tranductridung/bds/internal/auth"
	"github.com/tranductridung/bds/internal/notification"
	"github.com/tranductridung/bds/internal/queue"
	"github.com/tranductridung/bds/internal/reminder"

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

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&reminder.Reminder{},
		&queue.Job{},
		&notification.Notification{},
		&notification.Receiver{},
	); err != nil {
		return err
	}

	// The scanner's due-window query and the queue claim both walk a
	// (status, time) slice; composite indexes keep every tick an index
	// range scan.
	stmts := []string{
		`create index if not exists idx_reminders_due on reminders(status, process_status, remind_at);`,
		`create index if not exists idx_reminders_creator on reminders(creator_id, created_at desc);`,
		`create index if not exists idx_reminders_assignee on reminders(assignee_id, created_at desc);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
		`create index if not exists idx_nr_receiver on notification_receivers(receiver_id, read_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
