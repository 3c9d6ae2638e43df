package queue

import (
	"context"
	"log"
	"time"
)

// Handler processes one delivered job. A returned error triggers the
// queue's retry policy; redelivery of the same job is therefore normal
// and handlers must tolerate it.
type Handler func(ctx context.Context, job *Job) error

// Worker polls the queue and dispatches due jobs to registered
// handlers. Several workers may run against the same table; the claim
// query guarantees each job delivery goes to exactly one of them.
type Worker struct {
	ID    string
	Queue *Queue
	Poll  time.Duration

	handlers map[string]Handler
}

func (w *Worker) Handle(jobType string, h Handler) {
	if w.handlers == nil {
		w.handlers = make(map[string]Handler)
	}
	w.handlers[jobType] = h
}

func (w *Worker) Run(ctx context.Context) {
	poll := w.Poll
	if poll <= 0 {
		poll = 800 * time.Millisecond
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Queue.Claim(ctx, w.ID)
			if err != nil {
				log.Printf("worker %s: claim error: %v\n", w.ID, err)
				continue
			}
			if job == nil {
				continue
			}
			w.dispatch(ctx, job)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, job *Job) {
	h, ok := w.handlers[job.Type]
	if !ok {
		_ = w.Queue.MarkFailed(ctx, job.ID, "unknown job type")
		return
	}

	if err := h(ctx, job); err != nil {
		w.retry(ctx, job, err.Error())
		return
	}
	if err := w.Queue.MarkDone(ctx, job); err != nil {
		log.Printf("worker %s: mark done %s: %v\n", w.ID, job.JobID, err)
	}
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Queue.MarkFailed(ctx, job.ID, errMsg)
		return
	}

	next := time.Now().Add(Backoff(time.Duration(job.BackoffBaseMs)*time.Millisecond, attempts))
	_ = w.Queue.RetryLater(ctx, job.ID, attempts, next, errMsg)
}
