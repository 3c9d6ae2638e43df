package queue

import (
	"encoding/json"
	"time"
)

// Job is one durable queue entry. JobID is the caller-supplied identity:
// at most one live job can carry a given JobID at a time.
type Job struct {
	ID    uint64 `gorm:"primaryKey"`
	JobID string `gorm:"uniqueIndex:uq_jobs_job_id;not null"`

	Type    string          `gorm:"type:text;not null"`
	Payload json.RawMessage `gorm:"type:jsonb;not null"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED

	// Attempts counts deliveries already made. During a delivery the
	// consumer sees the previous count, so attempt number = Attempts+1.
	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:1"`

	// BackoffBaseMs seeds the exponential retry delay.
	BackoffBaseMs int64 `gorm:"not null;default:0"`

	RemoveOnComplete bool `gorm:"not null;default:false"`

	LockedBy *string    `gorm:"type:text"`
	LockedAt *time.Time `gorm:"type:timestamptz"`

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// LastAttempt reports whether the delivery currently in flight is the
// final one allowed for this job.
func (j *Job) LastAttempt() bool {
	return j.Attempts+1 >= j.MaxAttempts
}
