package scheduler

import "sync"

// RunGuard is the per-task single-flight latch: at most one execution of a
// given task can hold it at a time. State is process-local only; a restart
// resets everything to idle, which is the documented recovery policy.
type RunGuard struct {
	mu      sync.Mutex
	running map[string]bool
}

func NewRunGuard() *RunGuard {
	return &RunGuard{running: make(map[string]bool)}
}

// TryAcquire marks the task busy and returns true, or returns false if an
// execution already holds the latch. It never blocks or queues.
func (g *RunGuard) TryAcquire(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[taskID] {
		return false
	}
	g.running[taskID] = true
	return true
}

// Release clears the busy mark. Call exactly once per successful
// TryAcquire, on every outcome path.
func (g *RunGuard) Release(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, taskID)
}

// Running reports whether the task currently holds the latch.
func (g *RunGuard) Running(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[taskID]
}
