package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// jobEntry is the live scheduling state for one task: the cron entry that
// fires it, the expression it was registered with and the next fire time.
type jobEntry struct {
	entryID cron.EntryID
	expr    string
	next    time.Time
}

// registry maps task ids to their scheduled job entries. It mirrors the
// enabled subset of the task store but is rebuilt from disk on every
// start, never persisted itself.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]jobEntry
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]jobEntry)}
}

func (r *registry) get(taskID string) (jobEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.jobs[taskID]
	return entry, ok
}

func (r *registry) put(taskID string, entry jobEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[taskID] = entry
}

func (r *registry) delete(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, taskID)
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
