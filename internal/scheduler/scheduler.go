// Package scheduler drives the periodic search-analytics refresh.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"content-radar/internal/model"

	"golang.org/x/sync/errgroup"
)

// Config controls the refresh cadence. Interval accepts either a Go
// duration ("6h") or a 5-field cron spec ("30 3 * * *").
type Config struct {
	Interval string `yaml:"interval" json:"interval"`
	Timeout  string `yaml:"timeout" json:"timeout"`
	// LagDays is how far behind today the fetched stats date sits; search
	// consoles finalize data with a delay.
	LagDays int `yaml:"lag_days" json:"lag_days"`
}

// StatsFetcher pulls one day of page stats.
type StatsFetcher interface {
	FetchDaily(ctx context.Context, day time.Time) ([]model.SearchStat, error)
}

// Store persists fetched stats.
type Store interface {
	UpsertSearchStats(ctx context.Context, stats []model.SearchStat) (int, error)
}

// Scheduler runs the refresh on an interval and exposes RunOnce for the
// admin refresh endpoint. Overlapping runs are skipped, not queued.
type Scheduler struct {
	fetcher   StatsFetcher
	store     Store
	interval  time.Duration
	cron      *cronSchedule
	timeout   time.Duration
	lagDays   int
	running   atomic.Bool
	newTicker func(time.Duration) ticker
	now       func() time.Time
	logger    *log.Logger
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewScheduler parses the configured schedule and timeout, defaulting to a
// daily refresh with a 30 second timeout.
func NewScheduler(fetcher StatsFetcher, store Store, cfg Config) *Scheduler {
	interval, cron := parseSchedule(cfg.Interval)
	timeout := 30 * time.Second
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	lag := cfg.LagDays
	if lag < 0 {
		lag = 0
	}

	return &Scheduler{
		fetcher:   fetcher,
		store:     store,
		interval:  interval,
		cron:      cron,
		timeout:   timeout,
		lagDays:   lag,
		newTicker: defaultTicker,
		now:       time.Now,
		logger:    log.New(os.Stdout, "[scheduler] ", log.LstdFlags),
	}
}

// Start runs the refresh loop until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.fetcher == nil || s.store == nil {
		return fmt.Errorf("scheduler missing dependencies")
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.cron != nil {
		g.Go(func() error {
			return s.startCron(ctx)
		})
		return g.Wait()
	}

	tick := s.newTicker(s.interval)
	ch := tick.C()

	g.Go(func() error {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				if _, err := s.runOnce(ctx); err != nil {
					s.logger.Printf("refresh failed: %v", err)
				}
			drain:
				for {
					select {
					case <-ch:
						continue
					default:
						break drain
					}
				}
			}
		}
	})

	return g.Wait()
}

// RunOnce refreshes immediately, returning the number of new stat rows.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) (int, error) {
	if s.running.Swap(true) {
		return 0, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	day := s.now().AddDate(0, 0, -s.lagDays)
	stats, err := s.fetcher.FetchDaily(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("fetch stats: %w", err)
	}

	created, err := s.store.UpsertSearchStats(ctx, stats)
	if err != nil {
		return 0, fmt.Errorf("upsert stats: %w", err)
	}
	return created, nil
}

func defaultTicker(d time.Duration) ticker {
	t := time.NewTicker(d)
	return tickerWrapper{t}
}

type tickerWrapper struct {
	*time.Ticker
}

func (t tickerWrapper) C() <-chan time.Time { return t.Ticker.C }
func (t tickerWrapper) Stop()               { t.Ticker.Stop() }
