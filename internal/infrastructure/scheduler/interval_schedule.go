package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job every Interval. Non-positive intervals are
// raised to one minute.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates an IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) IntervalSchedule {
	if interval <= 0 {
		interval = time.Minute
	}
	return IntervalSchedule{Interval: interval}
}

// Next returns t + Interval.
func (s IntervalSchedule) Next(t time.Time) time.Time { return t.Add(s.Interval) }

func (s IntervalSchedule) String() string { return fmt.Sprintf("@every %s", s.Interval) }
