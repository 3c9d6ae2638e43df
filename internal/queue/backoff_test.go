package queue

import (
	"testing"
	"time"
)

func TestBackoff_Exponential(t *testing.T) {
	base := 5 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},  // base * 2^0
		{2, 10 * time.Second}, // base * 2^1
		{3, 20 * time.Second}, // base * 2^2
		{4, 40 * time.Second}, // base * 2^3
	}

	for _, tt := range tests {
		got := Backoff(base, tt.attempt)
		if got != tt.want {
			t.Errorf("Backoff(5s, attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Cap(t *testing.T) {
	got := Backoff(time.Minute, 20)
	if got != maxBackoff {
		t.Errorf("Backoff(1m, 20) = %v, want cap %v", got, maxBackoff)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	if got := Backoff(0, 1); got != time.Second {
		t.Errorf("Backoff(0, 1) = %v, want 1s default base", got)
	}
	if got := Backoff(time.Second, 0); got != time.Second {
		t.Errorf("Backoff(1s, 0) = %v, want attempt clamped to 1", got)
	}
}

func TestJobLastAttempt(t *testing.T) {
	tests := []struct {
		attempts, max int
		want          bool
	}{
		{0, 3, false},
		{1, 3, false},
		{2, 3, true},
		{0, 1, true},
	}
	for _, tt := range tests {
		j := &Job{Attempts: tt.attempts, MaxAttempts: tt.max}
		if got := j.LastAttempt(); got != tt.want {
			t.Errorf("LastAttempt with attempts=%d max=%d = %v, want %v", tt.attempts, tt.max, got, tt.want)
		}
	}
}
