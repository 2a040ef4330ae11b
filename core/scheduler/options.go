package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

type Option func(*Scheduler)

// WithWorkers sets the number of goroutines draining the fire queue.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize sets the fire queue capacity. Fires arriving while the
// queue is full are dropped with a warning.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithExecutionTimeout bounds a single agent invocation. Exceeding it
// fails the execution with "execution timeout".
func WithExecutionTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSummaryLength sets how many characters of the last text fragment
// make up the result summary.
func WithSummaryLength(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.summaryLen = n
		}
	}
}

// WithScheduleBuilder replaces how cron expressions are turned into
// trigger schedules. The default parses standard 5-field expressions;
// overriding it allows fixed-interval schedules with sub-minute periods.
func WithScheduleBuilder(fn func(expr string) (cron.Schedule, error)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.buildSchedule = fn
		}
	}
}

// WithExecutionListener registers a callback observing every persisted
// execution transition (running, terminal, skipped). The listener gets a
// copy and must not block for long; it runs on the firing goroutine.
func WithExecutionListener(fn func(Execution)) Option {
	return func(s *Scheduler) {
		s.listener = fn
	}
}
