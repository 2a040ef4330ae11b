package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard 5-field format:
// minute, hour, day-of-month, month, day-of-week.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCronExpression parses a 5-field cron expression into a schedule.
func ParseCronExpression(expr string) (cron.Schedule, error) {
	if len(strings.Fields(expr)) != 5 {
		return nil, fmt.Errorf("%w: %q (expected 5 fields)", ErrInvalidCronExpression, expr)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, expr, err)
	}
	return schedule, nil
}

// ValidateCronExpression reports whether expr is an acceptable 5-field
// cron expression. It never panics on malformed input.
func ValidateCronExpression(expr string) bool {
	_, err := ParseCronExpression(expr)
	return err == nil
}

// NextFireTime computes the earliest instant strictly after the given one
// that satisfies the expression. ok is false when the expression is
// malformed or the schedule has no future occurrence.
func NextFireTime(expr string, after time.Time) (next time.Time, ok bool) {
	schedule, err := ParseCronExpression(expr)
	if err != nil {
		return time.Time{}, false
	}
	next = schedule.Next(after)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
