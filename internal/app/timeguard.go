package app

import (
	"time"

	"event-quiz-service/internal/domain"
)

const (
	MinQuizDuration     = 600 * time.Second
	MaxQuizDuration     = 1200 * time.Second
	DefaultQuizDuration = MinQuizDuration
)

// Durations holds the total quiz time per event.
type Durations struct {
	Default  time.Duration
	PerEvent map[domain.Event]time.Duration
}

// For returns the configured duration for event clamped to [MinQuizDuration, MaxQuizDuration].
func (d Durations) For(event domain.Event) time.Duration {
	total := d.Default
	if v, ok := d.PerEvent[event]; ok && v > 0 {
		total = v
	}
	if total <= 0 {
		total = DefaultQuizDuration
	}
	if total < MinQuizDuration {
		return MinQuizDuration
	}
	if total > MaxQuizDuration {
		return MaxQuizDuration
	}
	return total
}

// TimeGuard answers time questions about one session. It never fires on its
// own; callers consult it when a request arrives.
type TimeGuard struct {
	start time.Time
	total time.Duration
}

func NewTimeGuard(start time.Time, total time.Duration) TimeGuard {
	return TimeGuard{start: start, total: total}
}

// GuardFor builds the guard for a persisted session.
func GuardFor(s domain.QuizSession) TimeGuard {
	return NewTimeGuard(s.StartTime, s.Duration)
}

func (g TimeGuard) Deadline() time.Time {
	return g.start.Add(g.total)
}

// Elapsed is the time since start, never negative.
func (g TimeGuard) Elapsed(now time.Time) time.Duration {
	if d := now.Sub(g.start); d > 0 {
		return d
	}
	return 0
}

// ElapsedSeconds is Elapsed truncated to whole seconds.
func (g TimeGuard) ElapsedSeconds(now time.Time) int {
	return int(g.Elapsed(now) / time.Second)
}

// Remaining is the time left before the deadline, floor-clamped at zero.
func (g TimeGuard) Remaining(now time.Time) time.Duration {
	if d := g.Deadline().Sub(now); d > 0 {
		return d
	}
	return 0
}

// RemainingSeconds is Remaining truncated to whole seconds.
func (g TimeGuard) RemainingSeconds(now time.Time) int {
	return int(g.Remaining(now) / time.Second)
}

func (g TimeGuard) IsExpired(now time.Time) bool {
	return g.Remaining(now) <= 0
}
