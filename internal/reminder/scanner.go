package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tranductridung/bds/internal/queue"

	"github.com/robfig/cron/v3"
)

// Scanner walks the due window on a fixed schedule and moves PENDING
// reminders into the queue. Several scanner instances may run at once;
// the claim makes each reminder's hand-off exclusive.
type Scanner struct {
	Svc *Service

	Window     time.Duration // due window [now, now+Window]
	BatchLimit int           // per-tick work cap
	StuckAfter time.Duration // recover SCHEDULING claims older than this

	cron *cron.Cron
}

// Start registers ScanOnce on the cron spec (minute granularity, e.g.
// "*/1 * * * *") and starts the runner.
func (s *Scanner) Start(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := s.ScanOnce(context.Background()); err != nil {
			log.Printf("scanner: %v\n", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register scan schedule: %w", err)
	}
	s.cron = c
	c.Start()
	return nil
}

func (s *Scanner) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// ScanOnce performs a single tick: recover stalled claims, then claim
// and enqueue each due reminder. Reminders are independent; one failure
// is collected and the batch continues.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	s.recoverStalled(ctx)

	now := time.Now()

	var due []Reminder
	err := s.Svc.DB.WithContext(ctx).Model(&Reminder{}).
		Select("id", "remind_at").
		Where("status = ? AND process_status = ?", StatusActive, ProcessPending).
		Where("remind_at BETWEEN ? AND ?", now, now.Add(s.Window)).
		Order("remind_at ASC").
		Limit(s.BatchLimit).
		Find(&due).Error
	if err != nil {
		return fmt.Errorf("scan due window: %w", err)
	}

	var errs []error
	for _, r := range due {
		if err := s.scheduleOne(ctx, r.ID, r.RemindAt); err != nil {
			log.Printf("scanner: reminder %d: %v\n", r.ID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// scheduleOne claims PENDING→SCHEDULING, enqueues the delayed job, and
// records SCHEDULED. Losing the claim is the normal concurrent-tick
// outcome, not an error. An enqueue failure rolls the claim back so the
// next tick retries.
func (s *Scanner) scheduleOne(ctx context.Context, reminderID uint64, remindAt time.Time) error {
	claimed, err := s.Svc.TryClaim(ctx, reminderID, ProcessPending, StatusActive, ProcessScheduling)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		return nil
	}

	job, err := s.Svc.AddJob(ctx, reminderID, remindAt)
	if err != nil {
		if errors.Is(err, queue.ErrDuplicateJob) {
			// a live job already exists (enqueued by a claim that
			// died before recording it); adopt it
			return s.Svc.markScheduled(ctx, reminderID, JobID(reminderID))
		}
		if rbErr := s.Svc.releaseToPending(ctx, reminderID); rbErr != nil {
			log.Printf("scanner: rollback reminder %d: %v\n", reminderID, rbErr)
		}
		return fmt.Errorf("enqueue: %w", err)
	}

	return s.Svc.markScheduled(ctx, reminderID, job.JobID)
}

// recoverStalled returns reminders stuck in SCHEDULING to PENDING. A
// claim can be stranded there when its scanner dies between claiming
// and enqueueing; without this the reminder would never fire.
func (s *Scanner) recoverStalled(ctx context.Context) {
	stuckAfter := s.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = 5 * time.Minute
	}

	res := s.Svc.DB.WithContext(ctx).Model(&Reminder{}).
		Where("process_status = ? AND updated_at < ?", ProcessScheduling, time.Now().Add(-stuckAfter)).
		Updates(map[string]any{
			"job_id":         nil,
			"process_status": ProcessPending,
		})
	if res.Error != nil {
		log.Printf("scanner: recover stalled claims: %v\n", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("scanner: recovered %d stalled claim(s)\n", res.RowsAffected)
	}
}
