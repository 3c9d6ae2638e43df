package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Claim relies on Postgres (FOR UPDATE SKIP LOCKED); these tests run
// only when TEST_DATABASE_URL points at a disposable database.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := gdb.Exec("drop table if exists jobs").Error; err != nil {
		t.Fatal(err)
	}
	if err := gdb.AutoMigrate(&Job{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestClaim_ExactlyOneWinner(t *testing.T) {
	gdb := newPostgresDB(t)
	q := &Queue{DB: gdb}
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "send-reminder", struct{}{}, Options{JobID: "solo"}); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var wg sync.WaitGroup
	claims := make(chan *Job, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			job, err := q.Claim(ctx, fmt.Sprintf("w-%d", n))
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if job != nil {
				claims <- job
			}
		}(i)
	}
	wg.Wait()
	close(claims)

	var won int
	for range claims {
		won++
	}
	if won != 1 {
		t.Fatalf("%d workers claimed the job, want exactly 1", won)
	}
}

func TestClaim_SkipsFutureJobs(t *testing.T) {
	gdb := newPostgresDB(t)
	q := &Queue{DB: gdb}
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "send-reminder", struct{}{}, Options{JobID: "later", Delay: time.Hour}); err != nil {
		t.Fatal(err)
	}

	job, err := q.Claim(ctx, "w-1")
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Fatalf("claimed a job due in an hour: %+v", job)
	}
}

func TestClaim_RequeuesStuckRunning(t *testing.T) {
	gdb := newPostgresDB(t)
	q := &Queue{DB: gdb, StuckAfter: time.Minute}
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "send-reminder", struct{}{}, Options{JobID: "stuck"})
	if err != nil {
		t.Fatal(err)
	}

	// simulate a worker that died mid-flight
	past := time.Now().Add(-10 * time.Minute)
	worker := "w-dead"
	if err := gdb.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]any{
		"status":    "RUNNING",
		"locked_by": worker,
		"locked_at": past,
	}).Error; err != nil {
		t.Fatal(err)
	}

	got, err := q.Claim(ctx, "w-alive")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("stuck job was not requeued and reclaimed")
	}
	if got.JobID != "stuck" || got.LockedBy == nil || *got.LockedBy != "w-alive" {
		t.Fatalf("unexpected claim: %+v", got)
	}
}
