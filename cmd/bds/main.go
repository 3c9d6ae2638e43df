package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tranductridung/bds/internal/auth"
	"github.com/tranductridung/bds/internal/config"
	"github.com/tranductridung/bds/internal/db"
	httpx "github.com/tranductridung/bds/internal/http"
	"github.com/tranductridung/bds/internal/notification"
	"github.com/tranductridung/bds/internal/queue"
	"github.com/tranductridung/bds/internal/reminder"
)

func main() {
	cfg, _ := config.Load()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal(err)
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)

	q := &queue.Queue{DB: gdb, StuckAfter: cfg.StuckAfter}
	notifSvc := &notification.Service{DB: gdb}
	reminderSvc := &reminder.Service{
		DB:          gdb,
		Queue:       q,
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
	}

	ctx, cancel := context.WithCancel(context.Background())

	// queue worker with the send-reminder handler
	qw := &queue.Worker{ID: cfg.WorkerID, Queue: q, Poll: cfg.QueuePoll}
	rw := &reminder.Worker{Svc: reminderSvc, Dispatcher: notifSvc}
	rw.Register(qw)
	go qw.Run(ctx)

	// due-window scanner
	scanner := &reminder.Scanner{
		Svc:        reminderSvc,
		Window:     cfg.QueueWindow,
		BatchLimit: cfg.ScanBatchLimit,
		StuckAfter: cfg.StuckAfter,
	}
	if err := scanner.Start(cfg.ScanCronSpec); err != nil {
		log.Fatal(err)
	}

	r := httpx.NewRouter(cfg, gdb, jwtSvc, reminderSvc, notifSvc)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s\n", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	scanner.Stop()
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
