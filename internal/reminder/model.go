package reminder

import (
	"fmt"
	"time"
)

// Status is the user-facing lifecycle axis. CANCELLED is terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
)

// ProcessStatus is the delivery-pipeline axis, independent of Status.
// PENDING → SCHEDULING → SCHEDULED → PROCESSING → SUCCESS | FAILED.
// The only backward edges return to PENDING: enqueue rollback and a
// remind-at change by the creator.
type ProcessStatus string

const (
	ProcessPending    ProcessStatus = "PENDING"    // not enqueued yet
	ProcessScheduling ProcessStatus = "SCHEDULING" // scanner holds the claim
	ProcessScheduled  ProcessStatus = "SCHEDULED"  // queue job exists
	ProcessProcessing ProcessStatus = "PROCESSING" // worker holds the claim
	ProcessSuccess    ProcessStatus = "SUCCESS"
	ProcessFailed     ProcessStatus = "FAILED"
)

type Reminder struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	Status        Status        `gorm:"type:text;index;not null;default:'ACTIVE'" json:"status"`
	ProcessStatus ProcessStatus `gorm:"type:text;index;not null;default:'PENDING'" json:"processStatus"`

	Title   string `gorm:"type:text;not null" json:"title"`
	Message string `gorm:"type:text;not null" json:"message"`

	RemindAt time.Time `gorm:"index;not null" json:"remindAt"`

	// JobID is set only while a live queue job exists for this
	// reminder (SCHEDULED, PROCESSING).
	JobID *string `gorm:"type:text" json:"jobId"`

	CreatorID  uint64 `gorm:"index;not null" json:"creatorId"`
	AssigneeID uint64 `gorm:"index;not null" json:"assigneeId"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// JobID derives the queue identity for a reminder. Deterministic, so at
// most one live job can exist per reminder.
func JobID(reminderID uint64) string {
	return fmt.Sprintf("reminder-%d", reminderID)
}
