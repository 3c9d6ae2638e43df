package notification

import "time"

type Type string

const (
	TypeSystem   Type = "SYSTEM"
	TypeReminder Type = "REMINDER"
	TypeActivity Type = "ACTIVITY"
	TypeAlert    Type = "ALERT"
)

type Notification struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	Type    Type   `gorm:"type:text;index;not null" json:"type"`
	Title   string `gorm:"type:text;not null" json:"title"`
	Message string `gorm:"type:text;not null" json:"message"`

	// optional reference to the object the notification is about
	ObjectType *string `gorm:"type:text" json:"objectType"`
	ObjectID   *uint64 `json:"objectId"`

	CreatedAt time.Time `gorm:"index;not null" json:"createdAt"`
}

// Receiver is the per-recipient fan-out row with read/dismiss tracking.
type Receiver struct {
	NotificationID uint64 `gorm:"primaryKey"`
	ReceiverID     uint64 `gorm:"primaryKey;index"`

	ReadAt    *time.Time
	DeletedAt *time.Time
}

func (Receiver) TableName() string { return "notification_receivers" }
