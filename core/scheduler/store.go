package scheduler

// TaskStore is durable persistence for task definitions, one document per
// task id. Implementations must make each write atomic: a reader never
// observes a half-written document.
type TaskStore interface {
	// SaveTask writes the task document, creating or replacing it.
	SaveTask(task *Task) error

	// LoadTask retrieves a task by id, or ErrTaskNotFound.
	LoadTask(id string) (*Task, error)

	// LoadAllTasks retrieves every task document, in no particular order.
	// Malformed documents are skipped, not fatal.
	LoadAllTasks() ([]*Task, error)

	// DeleteTask removes the task document and every execution recorded
	// under it, or ErrTaskNotFound.
	DeleteTask(id string) error
}

// ExecutionStore is append-style persistence for execution records nested
// under their task. Records are only removed as a side effect of task
// deletion.
type ExecutionStore interface {
	// SaveExecution writes the execution document, creating or replacing
	// it. Parent directories are created transparently.
	SaveExecution(taskID string, execution *Execution) error

	// LoadExecution retrieves one execution, or ErrExecutionNotFound.
	LoadExecution(taskID, id string) (*Execution, error)

	// ListExecutions returns a page of executions for the task ordered by
	// start time descending, plus the total count. limit <= 0 means no
	// page limit.
	ListExecutions(taskID string, limit, offset int) ([]*Execution, int, error)
}
