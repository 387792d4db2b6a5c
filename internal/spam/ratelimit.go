package spam

import (
	"context"
	"log"
	"os"
	"time"
)

// CommentCounter counts prior submissions inside the sliding window.
type CommentCounter interface {
	CountRecentComments(ctx context.Context, ip, email string, since time.Time) (int64, error)
}

// LimiterConfig tunes the sliding-window limiter.
type LimiterConfig struct {
	Window time.Duration `yaml:"window" json:"window"`
	Max    int           `yaml:"max" json:"max"`
}

// RateLimiter allows at most Max comments per IP or email inside the
// trailing window. It fails open: a counting error never blocks a submitter,
// at the cost of allowing a burst during a store outage.
type RateLimiter struct {
	counter CommentCounter
	window  time.Duration
	max     int
	now     func() time.Time
	logger  *log.Logger
}

// NewRateLimiter builds a limiter with defaults of 5 comments per 60 minutes.
func NewRateLimiter(counter CommentCounter, cfg LimiterConfig) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.Max <= 0 {
		cfg.Max = 5
	}
	return &RateLimiter{
		counter: counter,
		window:  cfg.Window,
		max:     cfg.Max,
		now:     time.Now,
		logger:  log.New(os.Stdout, "[ratelimit] ", log.LstdFlags),
	}
}

// Allowed reports whether another submission from this IP or email may
// proceed right now.
func (l *RateLimiter) Allowed(ctx context.Context, ip, email string) bool {
	since := l.now().Add(-l.window)
	count, err := l.counter.CountRecentComments(ctx, ip, email, since)
	if err != nil {
		l.logger.Printf("count failed, allowing submission: %v", err)
		return true
	}
	return count < int64(l.max)
}
