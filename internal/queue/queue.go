package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDuplicateJob = errors.New("job id already enqueued")

// Options mirror what a producer may set per job.
type Options struct {
	JobID            string
	Delay            time.Duration
	MaxAttempts      int
	BackoffBase      time.Duration
	RemoveOnComplete bool
}

// Queue is a durable delayed-job queue on top of the relational store.
// Delivery is at-least-once: a worker claims a due job, and a job whose
// worker died mid-flight is requeued after StuckAfter.
type Queue struct {
	DB         *gorm.DB
	StuckAfter time.Duration
}

func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, opts Options) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	j := Job{
		JobID:            opts.JobID,
		Type:             jobType,
		Payload:          body,
		RunAt:            time.Now().Add(opts.Delay),
		Status:           "PENDING",
		MaxAttempts:      maxAttempts,
		BackoffBaseMs:    opts.BackoffBase.Milliseconds(),
		RemoveOnComplete: opts.RemoveOnComplete,
	}

	res := q.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoNothing: true,
		}).
		Create(&j)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicateJob
	}
	return &j, nil
}

// Remove deletes a not-yet-running job. Removing a job that is already
// claimed, finished, or gone is not an error; the caller treats removal
// as advisory.
func (q *Queue) Remove(ctx context.Context, jobID string) error {
	return q.DB.WithContext(ctx).
		Where("job_id = ? AND status = 'PENDING'", jobID).
		Delete(&Job{}).Error
}

// Claim picks one due job atomically using SKIP LOCKED (Postgres).
// Stuck RUNNING jobs are requeued first so a crashed worker cannot
// strand a job forever.
func (q *Queue) Claim(ctx context.Context, workerID string) (*Job, error) {
	stuckAfter := q.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = 5 * time.Minute
	}

	var job Job
	err := q.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - make_interval(secs => ?)
`, stuckAfter.Seconds())

		// FOR UPDATE SKIP LOCKED ensures no double-claim
		return tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now()
  order by run_at asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, workerID).Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (q *Queue) MarkDone(ctx context.Context, job *Job) error {
	if job.RemoveOnComplete {
		return q.DB.WithContext(ctx).Where("id = ?", job.ID).Delete(&Job{}).Error
	}
	return q.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":    "DONE",
			"locked_by": nil,
			"locked_at": nil,
		}).Error
}

func (q *Queue) MarkFailed(ctx context.Context, jobID uint64, errMsg string) error {
	return q.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     "FAILED",
			"last_error": errMsg,
			"locked_by":  nil,
			"locked_at":  nil,
		}).Error
}

// RetryLater releases the job back to PENDING with the made-attempt
// count bumped and the next run scheduled after the backoff delay.
func (q *Queue) RetryLater(ctx context.Context, jobID uint64, attempts int, runAt time.Time, errMsg string) error {
	return q.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     "PENDING",
			"attempts":   attempts,
			"run_at":     runAt,
			"last_error": errMsg,
			"locked_by":  nil,
			"locked_at":  nil,
		}).Error
}
