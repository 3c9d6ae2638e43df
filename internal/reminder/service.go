package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tranductridung/bds/internal/auth"
	"github.com/tranductridung/bds/internal/queue"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("reminder not found")
	ErrForbidden        = errors.New("not the reminder creator")
	ErrNotActive        = errors.New("reminder is not active")
	ErrRemindAtPast     = errors.New("remind at must be in the future")
	ErrAssigneeNotFound = errors.New("assignee not found")
	ErrAlreadyCancelled = errors.New("reminder already cancelled")
	ErrAlreadyDelivered = errors.New("delivered reminder cannot be cancelled")
)

const JobTypeSend = "send-reminder"

// SendPayload is the queue payload for a send-reminder job.
type SendPayload struct {
	ReminderID uint64 `json:"reminder_id"`
}

type Service struct {
	DB    *gorm.DB
	Queue *queue.Queue

	// delivery retry policy handed to the queue per job
	MaxAttempts int
	BackoffBase time.Duration
}

type CreateInput struct {
	Title      string
	Message    string
	RemindAt   time.Time
	AssigneeID uint64 // ignored by CreateSelf
}

type UpdateInput struct {
	Title    *string
	Message  *string
	RemindAt *time.Time
}

func (s *Service) validateRemindAt(t time.Time) error {
	if !t.After(time.Now()) {
		return ErrRemindAtPast
	}
	return nil
}

// CreateSelf stores a reminder the creator addresses to themselves.
func (s *Service) CreateSelf(ctx context.Context, creatorID uint64, in CreateInput) (*Reminder, error) {
	in.AssigneeID = creatorID
	return s.create(ctx, creatorID, in, false)
}

// Create stores a reminder assigned to another user.
func (s *Service) Create(ctx context.Context, creatorID uint64, in CreateInput) (*Reminder, error) {
	return s.create(ctx, creatorID, in, true)
}

func (s *Service) create(ctx context.Context, creatorID uint64, in CreateInput, checkAssignee bool) (*Reminder, error) {
	if err := s.validateRemindAt(in.RemindAt); err != nil {
		return nil, err
	}

	if checkAssignee {
		var n int64
		if err := s.DB.WithContext(ctx).Model(&auth.User{}).
			Where("id = ?", in.AssigneeID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrAssigneeNotFound
		}
	}

	r := Reminder{
		Status:        StatusActive,
		ProcessStatus: ProcessPending,
		Title:         in.Title,
		Message:       in.Message,
		RemindAt:      in.RemindAt,
		CreatorID:     creatorID,
		AssigneeID:    in.AssigneeID,
	}
	if err := s.DB.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) assertCreator(ctx context.Context, userID, reminderID uint64) (*Reminder, error) {
	var r Reminder
	err := s.DB.WithContext(ctx).Where("id = ?", reminderID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if r.CreatorID != userID {
		return nil, ErrForbidden
	}
	return &r, nil
}

// Update edits content and/or remind-at. Only the creator may update
// and only while the reminder is ACTIVE. Changing remind-at pulls the
// reminder out of the pipeline: job id cleared, process status reset to
// PENDING, and the outstanding queue job removed best-effort. A removal
// that fails is harmless; the stale job loses its claim when it fires.
func (s *Service) Update(ctx context.Context, userID, reminderID uint64, in UpdateInput) (*Reminder, error) {
	r, err := s.assertCreator(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusActive {
		return nil, ErrNotActive
	}

	if in.RemindAt != nil {
		if err := s.validateRemindAt(*in.RemindAt); err != nil {
			return nil, err
		}
	}

	var staleJobID *string

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}
		if in.Title != nil {
			updates["title"] = *in.Title
		}
		if in.Message != nil {
			updates["message"] = *in.Message
		}
		if in.RemindAt != nil {
			staleJobID = r.JobID
			updates["remind_at"] = *in.RemindAt
			updates["job_id"] = nil
			updates["process_status"] = ProcessPending
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&Reminder{}).Where("id = ?", r.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	if staleJobID != nil {
		if err := s.Queue.Remove(ctx, *staleJobID); err != nil {
			log.Printf("reminder: remove stale job %s: %v\n", *staleJobID, err)
		}
	}

	return s.FindOne(ctx, r.ID)
}

// Cancel flips the lifecycle status to CANCELLED. Queue-job removal is
// advisory; the worker's claim re-checks the lifecycle status and
// refuses to deliver a cancelled reminder either way.
func (s *Service) Cancel(ctx context.Context, userID, reminderID uint64) error {
	r, err := s.assertCreator(ctx, userID, reminderID)
	if err != nil {
		return err
	}
	if r.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if r.ProcessStatus == ProcessSuccess {
		return ErrAlreadyDelivered
	}

	if err := s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("id = ?", r.ID).
		Update("status", StatusCancelled).Error; err != nil {
		return err
	}

	if r.JobID != nil {
		if err := s.Queue.Remove(ctx, *r.JobID); err != nil {
			log.Printf("reminder: remove job %s: %v\n", *r.JobID, err)
		}
	}
	return nil
}

// TryClaim is the single synchronization primitive of the pipeline: one
// conditional UPDATE whose affected-row count decides the winner. Among
// any number of concurrent callers for the same (id, expected) pair
// exactly one observes true; the rest must treat false as "someone else
// is handling it".
func (s *Service) TryClaim(ctx context.Context, reminderID uint64, expectProcess ProcessStatus, expectStatus Status, next ProcessStatus) (bool, error) {
	q := s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("id = ? AND status = ? AND process_status = ?", reminderID, expectStatus, expectProcess)
	if expectProcess == ProcessPending {
		// a PENDING reminder must not carry a live job
		q = q.Where("job_id IS NULL")
	}

	res := q.Update("process_status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddJob enqueues the delayed send job for a reminder.
func (s *Service) AddJob(ctx context.Context, reminderID uint64, remindAt time.Time) (*queue.Job, error) {
	delay := time.Until(remindAt)
	if delay <= 0 {
		return nil, ErrRemindAtPast
	}

	return s.Queue.Enqueue(ctx, JobTypeSend, SendPayload{ReminderID: reminderID}, queue.Options{
		JobID:            JobID(reminderID),
		Delay:            delay,
		MaxAttempts:      s.MaxAttempts,
		BackoffBase:      s.BackoffBase,
		RemoveOnComplete: true,
	})
}

// markScheduled records the enqueued job. Unconditional: only the actor
// holding the SCHEDULING claim for this id may call it.
func (s *Service) markScheduled(ctx context.Context, reminderID uint64, jobID string) error {
	return s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("id = ?", reminderID).
		Updates(map[string]any{
			"job_id":         jobID,
			"process_status": ProcessScheduled,
		}).Error
}

// releaseToPending undoes a SCHEDULING claim after an enqueue failure
// so the next scan retries. Unconditional for the same reason as
// markScheduled.
func (s *Service) releaseToPending(ctx context.Context, reminderID uint64) error {
	return s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("id = ?", reminderID).
		Updates(map[string]any{
			"job_id":         nil,
			"process_status": ProcessPending,
		}).Error
}

// TriggerSuccess records delivery. Idempotent: a reminder already
// SUCCESS, or no longer ACTIVE, is left untouched.
func (s *Service) TriggerSuccess(ctx context.Context, reminderID uint64) error {
	return s.trigger(ctx, reminderID, ProcessSuccess)
}

// TriggerFailed records a permanently failed delivery, with the same
// idempotent guard as TriggerSuccess.
func (s *Service) TriggerFailed(ctx context.Context, reminderID uint64) error {
	return s.trigger(ctx, reminderID, ProcessFailed)
}

func (s *Service) trigger(ctx context.Context, reminderID uint64, terminal ProcessStatus) error {
	return s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("id = ? AND status = ? AND process_status NOT IN ?",
			reminderID, StatusActive, []ProcessStatus{ProcessSuccess, ProcessFailed}).
		Updates(map[string]any{
			"process_status": terminal,
			"job_id":         nil,
		}).Error
}

// FindOneForWorker loads an ACTIVE reminder for delivery.
func (s *Service) FindOneForWorker(ctx context.Context, reminderID uint64) (*Reminder, error) {
	var r Reminder
	err := s.DB.WithContext(ctx).
		Where("id = ? AND status = ?", reminderID, StatusActive).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Service) FindOne(ctx context.Context, reminderID uint64) (*Reminder, error) {
	var r Reminder
	err := s.DB.WithContext(ctx).Where("id = ?", reminderID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// FindAll lists reminders the user created or is assigned, newest
// first, with optional pagination and title/message search.
func (s *Service) FindAll(ctx context.Context, userID uint64, page, limit int, search string) ([]Reminder, int64, error) {
	base := s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("creator_id = ? OR assignee_id = ?", userID, userID)

	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		base = base.Where("LOWER(title) LIKE ? OR LOWER(message) LIKE ?", like, like)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Session(&gorm.Session{}).Order("created_at DESC")
	if limit > 0 {
		q = q.Offset(page * limit).Limit(limit)
	}

	var out []Reminder
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list reminders: %w", err)
	}
	return out, total, nil
}
