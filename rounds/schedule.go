// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rounds

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron"
)

var ErrInvalidTimeOfDay = errors.New("invalid time of day, expected HH:MM")

// Daily is a wall-clock time evaluated in a fixed location.
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// ParseDaily parses "HH:MM" (24h) in loc.
func ParseDaily(hhmm string, loc *time.Location) (Daily, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return Daily{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, hhmm)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Daily{Hour: t.Hour(), Minute: t.Minute(), Location: loc}, nil
}

// Spec returns the cron expression (with seconds) that fires offset after
// the daily time. Offsets are expected to stay within the same hour.
func (d Daily) Spec(offset time.Duration) string {
	at := time.Date(2000, 1, 1, d.Hour, d.Minute, 0, 0, time.UTC).Add(offset)
	return fmt.Sprintf("%d %d %d * * *", at.Second(), at.Minute(), at.Hour())
}

// Next returns the first occurrence strictly after t, wrapping to the next
// day once today's time has passed.
func (d Daily) Next(t time.Time) time.Time {
	sched, err := cron.Parse(d.Spec(0))
	if err != nil {
		// Spec always yields a valid expression
		panic(err)
	}
	return sched.Next(t.In(d.Location))
}

func (d Daily) String() string {
	return fmt.Sprintf("%02d:%02d %s", d.Hour, d.Minute, d.Location)
}
