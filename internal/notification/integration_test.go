package notification

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/tranductridung/bds/internal/auth"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The fan-out insert uses Postgres array SQL, so these run only when
// TEST_DATABASE_URL points at a disposable database.
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
	for _, table := range []string{"notification_receivers", "notifications", "users"} {
		if err := gdb.Exec("drop table if exists " + table).Error; err != nil {
			t.Fatal(err)
		}
	}
	if err := gdb.AutoMigrate(&auth.User{}, &Notification{}, &Receiver{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, email string) uint64 {
	t.Helper()
	u := auth.User{Email: email, PasswordHash: "x"}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	return u.ID
}

func TestNotify_FanOut(t *testing.T) {
	gdb := newPostgresDB(t)
	svc := &Service{DB: gdb}
	ctx := context.Background()

	a := seedUser(t, gdb, "a@example.com")
	b := seedUser(t, gdb, "b@example.com")

	err := svc.Notify(ctx, Input{
		ReceiverIDs: []uint64{a, b, a}, // duplicate collapses
		Type:        TypeReminder,
		Title:       "rent due",
		Message:     "transfer before friday",
		ObjectType:  "reminder",
		ObjectID:    12,
	})
	if err != nil {
		t.Fatal(err)
	}

	var notifs int64
	gdb.Model(&Notification{}).Count(&notifs)
	if notifs != 1 {
		t.Fatalf("notifications = %d, want 1", notifs)
	}
	var receivers int64
	gdb.Model(&Receiver{}).Count(&receivers)
	if receivers != 2 {
		t.Fatalf("receiver rows = %d, want 2", receivers)
	}

	items, total, err := svc.ListForReceiver(ctx, a, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("list = %d/%d, want 1", len(items), total)
	}
	if items[0].Title != "rent due" || items[0].ReadAt != nil {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestNotify_UnknownReceiver(t *testing.T) {
	gdb := newPostgresDB(t)
	svc := &Service{DB: gdb}

	a := seedUser(t, gdb, "a@example.com")

	err := svc.Notify(context.Background(), Input{
		ReceiverIDs: []uint64{a, 9999},
		Type:        TypeReminder,
		Title:       "t",
		Message:     "m",
		ObjectType:  "reminder",
		ObjectID:    1,
	})
	if !errors.Is(err, ErrReceiverNotFound) {
		t.Fatalf("err = %v, want ErrReceiverNotFound", err)
	}

	// the transaction rolled everything back
	var notifs int64
	gdb.Model(&Notification{}).Count(&notifs)
	if notifs != 0 {
		t.Fatalf("notifications = %d, want 0 after rollback", notifs)
	}
}

func TestReadTracking(t *testing.T) {
	gdb := newPostgresDB(t)
	svc := &Service{DB: gdb}
	ctx := context.Background()

	a := seedUser(t, gdb, "a@example.com")

	for i := 0; i < 2; i++ {
		err := svc.Notify(ctx, Input{
			ReceiverIDs: []uint64{a},
			Type:        TypeSystem,
			Title:       "t",
			Message:     "m",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	items, _, err := svc.ListForReceiver(ctx, a, 0, 10)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.MarkAsRead(ctx, items[0].ID, a); err != nil {
		t.Fatal(err)
	}
	// marking again is a no-op
	if err := svc.MarkAsRead(ctx, items[0].ID, a); err != nil {
		t.Fatal(err)
	}
	// unknown notification is reported
	if err := svc.MarkAsRead(ctx, 9999, a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	n, err := svc.MarkAllAsRead(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("marked = %d, want the 1 remaining unread", n)
	}

	if err := svc.Dismiss(ctx, items[1].ID, a); err != nil {
		t.Fatal(err)
	}
	items, total, err := svc.ListForReceiver(ctx, a, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("after dismiss: %d/%d, want 1", len(items), total)
	}
}
