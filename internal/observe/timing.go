package observe

import "time"

// Timing records start/end timestamps only
type Timing struct {
	StartedAt   time.Time
	CompletedAt time.Time

	now func() time.Time
}

// NewTiming creates timing with current start time
func NewTiming() *Timing {
	return newTimingWithClock(time.Now)
}

func newTimingWithClock(now func() time.Time) *Timing {
	return &Timing{
		StartedAt: now(),
		now:       now,
	}
}

// Complete records completion time. Later calls keep the first value.
func (t *Timing) Complete() time.Time {
	if t.CompletedAt.IsZero() {
		t.CompletedAt = t.now()
	}
	return t.CompletedAt
}

// Duration returns execution duration
func (t *Timing) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return t.now().Sub(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}
