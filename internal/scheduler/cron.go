package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseSchedule interprets the interval setting as a Go duration first and a
// 5-field cron spec second, falling back to a daily refresh.
func parseSchedule(value string) (time.Duration, *cronSchedule) {
	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		if d, err := time.ParseDuration(trimmed); err == nil && d > 0 {
			return d, nil
		}
		if schedule, err := parseCronSpec(trimmed); err == nil {
			return 0, schedule
		}
	}
	return 24 * time.Hour, nil
}

func (s *Scheduler) startCron(ctx context.Context) error {
	for {
		next, err := s.cron.next(s.now())
		if err != nil {
			return fmt.Errorf("compute next cron time: %w", err)
		}
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := s.runOnce(ctx); err != nil {
				s.logger.Printf("refresh failed: %v", err)
			}
		}
	}
}

// cronField is a bitmask of allowed values for one spec field; all cron
// ranges fit in 64 bits (minutes top out at 59).
type cronField uint64

func (f cronField) has(v int) bool { return f&(1<<uint(v)) != 0 }

// cronSchedule supports the minute/hour/dom/month/dow subset the refresh
// needs: "*", "*/step", plain values and comma lists. No ranges, no names.
type cronSchedule struct {
	minute, hour, dom, month, dow cronField
}

var cronBounds = [5]struct {
	name     string
	min, max int
}{
	{"minutes", 0, 59},
	{"hours", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

func parseCronSpec(spec string) (*cronSchedule, error) {
	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron spec must have 5 fields")
	}
	var parsed [5]cronField
	for i, b := range cronBounds {
		f, err := parseCronField(fields[i], b.min, b.max)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		parsed[i] = f
	}
	return &cronSchedule{
		minute: parsed[0],
		hour:   parsed[1],
		dom:    parsed[2],
		month:  parsed[3],
		dow:    parsed[4],
	}, nil
}

func parseCronField(expr string, min, max int) (cronField, error) {
	var f cronField
	for _, part := range strings.Split(strings.TrimSpace(expr), ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case part == "*":
			for v := min; v <= max; v++ {
				f |= 1 << uint(v)
			}
		case strings.HasPrefix(part, "*/"):
			step, err := strconv.Atoi(part[2:])
			if err != nil || step <= 0 {
				return 0, fmt.Errorf("invalid step %s", part)
			}
			for v := min; v <= max; v += step {
				f |= 1 << uint(v)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil || v < min || v > max {
				return 0, fmt.Errorf("invalid value %s", part)
			}
			f |= 1 << uint(v)
		}
	}
	if f == 0 {
		return 0, fmt.Errorf("no values parsed")
	}
	return f, nil
}

func (c *cronSchedule) matches(t time.Time) bool {
	return c.minute.has(t.Minute()) &&
		c.hour.has(t.Hour()) &&
		c.dom.has(t.Day()) &&
		c.month.has(int(t.Month())) &&
		c.dow.has(int(t.Weekday()))
}

func (c *cronSchedule) next(after time.Time) (time.Time, error) {
	start := after.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < 525600; i++ { // up to one year of minutes
		candidate := start.Add(time.Duration(i) * time.Minute)
		if c.matches(candidate) {
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("no matching time found")
}
