package scheduler

import "errors"

var (
	// ErrInvalidCronExpression rejects a cron expression that does not
	// parse as standard 5-field syntax.
	ErrInvalidCronExpression = errors.New("invalid cron expression")

	// ErrTaskNotFound reports a lookup for a task id with no document.
	ErrTaskNotFound = errors.New("task not found")

	// ErrExecutionNotFound reports a lookup for an execution id with no
	// document under the given task.
	ErrExecutionNotFound = errors.New("execution not found")
)
