package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("notification not found")
	ErrInvalidInput     = errors.New("invalid notification input")
	ErrReceiverNotFound = errors.New("some receivers not found")
)

// Input is a delivery request as the pipeline hands it over.
type Input struct {
	ReceiverIDs []uint64
	Type        Type
	Title       string
	Message     string
	ObjectType  string
	ObjectID    uint64
}

// Dispatcher accepts a delivery request and fans it out to recipients.
// The reminder worker treats any returned error as a failed delivery
// eligible for retry.
type Dispatcher interface {
	Notify(ctx context.Context, in Input) error
}

// Service is the store-backed Dispatcher: one notification row plus one
// receiver row per recipient, written in a single transaction.
type Service struct {
	DB *gorm.DB
}

var _ Dispatcher = (*Service)(nil)

func validateInput(in Input) error {
	switch in.Type {
	case TypeSystem:
		if in.ObjectType != "" || in.ObjectID != 0 {
			return fmt.Errorf("%w: %s must not reference an object", ErrInvalidInput, in.Type)
		}
	case TypeReminder, TypeActivity, TypeAlert:
		if in.ObjectType == "" || in.ObjectID == 0 {
			return fmt.Errorf("%w: %s must reference an object", ErrInvalidInput, in.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, in.Type)
	}
	return nil
}

func (s *Service) Notify(ctx context.Context, in Input) error {
	if err := validateInput(in); err != nil {
		return err
	}

	receiverIDs := dedupe(in.ReceiverIDs)
	if len(receiverIDs) == 0 {
		return nil
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Table("users").Where("id = any(?)", pq.Array(receiverIDs)).Count(&n).Error; err != nil {
			return err
		}
		if n != int64(len(receiverIDs)) {
			return ErrReceiverNotFound
		}

		notif := Notification{
			Type:    in.Type,
			Title:   in.Title,
			Message: in.Message,
		}
		if in.ObjectType != "" {
			notif.ObjectType = &in.ObjectType
			notif.ObjectID = &in.ObjectID
		}
		if err := tx.Create(&notif).Error; err != nil {
			return err
		}

		return tx.Exec(`
insert into notification_receivers (notification_id, receiver_id)
select ?, unnest(?::bigint[])
`, notif.ID, pq.Array(receiverIDs)).Error
	})
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Item is a notification joined with the receiver's read state.
type Item struct {
	Notification
	ReadAt *time.Time `json:"readAt"`
}

// ListForReceiver returns the receiver's undismissed notifications,
// newest first.
func (s *Service) ListForReceiver(ctx context.Context, receiverID uint64, page, limit int) ([]Item, int64, error) {
	base := s.DB.WithContext(ctx).Model(&Notification{}).
		Joins("INNER JOIN notification_receivers nr ON nr.notification_id = notifications.id").
		Where("nr.receiver_id = ? AND nr.deleted_at IS NULL", receiverID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Session(&gorm.Session{}).
		Select("notifications.*, nr.read_at AS read_at").
		Order("notifications.created_at DESC")
	if limit > 0 {
		q = q.Offset(page * limit).Limit(limit)
	}

	var out []Item
	if err := q.Scan(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Service) MarkAsRead(ctx context.Context, notificationID, receiverID uint64) error {
	res := s.DB.WithContext(ctx).Model(&Receiver{}).
		Where("notification_id = ? AND receiver_id = ? AND deleted_at IS NULL", notificationID, receiverID).
		Where("read_at IS NULL").
		Update("read_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// either unknown or already read; distinguish for the caller
		var n int64
		if err := s.DB.WithContext(ctx).Model(&Receiver{}).
			Where("notification_id = ? AND receiver_id = ? AND deleted_at IS NULL", notificationID, receiverID).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// MarkAllAsRead returns how many notifications were marked.
func (s *Service) MarkAllAsRead(ctx context.Context, receiverID uint64) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&Receiver{}).
		Where("receiver_id = ? AND read_at IS NULL AND deleted_at IS NULL", receiverID).
		Update("read_at", time.Now())
	return res.RowsAffected, res.Error
}

// Dismiss soft-deletes a notification for one receiver.
func (s *Service) Dismiss(ctx context.Context, notificationID, receiverID uint64) error {
	res := s.DB.WithContext(ctx).Model(&Receiver{}).
		Where("notification_id = ? AND receiver_id = ? AND deleted_at IS NULL", notificationID, receiverID).
		Update("deleted_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
