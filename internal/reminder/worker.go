package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/tranductridung/bds/internal/notification"
	"github.com/tranductridung/bds/internal/queue"
)

// Worker consumes send-reminder jobs. Everything here must tolerate
// duplicate deliveries, post-cancellation firings, and crashes between
// steps; the claim and the idempotent trigger updates carry that load.
type Worker struct {
	Svc        *Service
	Dispatcher notification.Dispatcher
}

// Register attaches the send-reminder handler to a queue worker.
func (w *Worker) Register(qw *queue.Worker) {
	qw.Handle(JobTypeSend, w.HandleSend)
}

// HandleSend processes one delivery of a send-reminder job. A returned
// error makes the queue retry (the job stays PROCESSING on the reminder
// across retries); a nil return acknowledges the job.
func (w *Worker) HandleSend(ctx context.Context, job *queue.Job) error {
	var p SendPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		log.Printf("reminder worker: bad payload on job %s: %v\n", job.JobID, err)
		return nil
	}

	claimed, err := w.Svc.TryClaim(ctx, p.ReminderID, ProcessScheduled, StatusActive, ProcessProcessing)
	if err != nil {
		return err
	}

	r, err := w.Svc.FindOneForWorker(ctx, p.ReminderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// gone or cancelled since scheduling; already handled
			return nil
		}
		return err
	}

	if !claimed {
		// Without the claim this delivery may proceed only if it is a
		// retry of the job that already holds PROCESSING. A duplicate
		// delivery, another job, or a finished reminder is discarded.
		if r.ProcessStatus != ProcessProcessing || r.JobID == nil || *r.JobID != job.JobID {
			return nil
		}
	}

	err = w.Dispatcher.Notify(ctx, notification.Input{
		ReceiverIDs: []uint64{r.AssigneeID},
		Type:        notification.TypeReminder,
		Title:       r.Title,
		Message:     r.Message,
		ObjectType:  "reminder",
		ObjectID:    r.ID,
	})
	if err != nil {
		if job.LastAttempt() {
			if terr := w.Svc.TriggerFailed(ctx, r.ID); terr != nil {
				log.Printf("reminder worker: trigger failed on %d: %v\n", r.ID, terr)
			}
		}
		return err
	}

	return w.Svc.TriggerSuccess(ctx, r.ID)
}
