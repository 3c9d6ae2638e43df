package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	// reminder pipeline
	ScanCronSpec   string
	QueueWindow    time.Duration
	ScanBatchLimit int

	WorkerID    string
	QueuePoll   time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	StuckAfter  time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		ScanCronSpec:   getenv("SCAN_CRON_SPEC", "*/1 * * * *"),
		QueueWindow:    getenvMs("QUEUE_WINDOW_MS", time.Hour),
		ScanBatchLimit: getenvInt("SCAN_BATCH_LIMIT", 100),

		WorkerID:    getenv("WORKER_ID", hostnameOr("worker-1")),
		QueuePoll:   getenvMs("QUEUE_POLL_MS", 800*time.Millisecond),
		MaxAttempts: getenvInt("REMINDER_MAX_ATTEMPTS", 3),
		BackoffBase: getenvMs("REMINDER_BACKOFF_MS", 5*time.Second),
		StuckAfter:  getenvMs("QUEUE_STUCK_MS", 5*time.Minute),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// getenvMs reads an env var holding a millisecond count.
func getenvMs(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func hostnameOr(def string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return def
	}
	return h
}
