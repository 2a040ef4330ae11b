package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mudler/xlog"
)

// FileStore persists tasks and executions as JSON documents under a root
// directory:
//
//	<root>/<taskID>.json
//	<root>/<taskID>/executions/<executionID>.json
//
// Writes go through a temp file and a rename so a document is always
// observed whole. Locking is per task id, so writers for different tasks
// never block one another.
type FileStore struct {
	root  string
	locks sync.Map // task id -> *sync.Mutex
}

// NewFileStore opens (and creates if needed) the store root directory.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) lock(taskID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(taskID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *FileStore) taskPath(id string) string {
	return filepath.Join(s.root, id+".json")
}

func (s *FileStore) executionsDir(taskID string) string {
	return filepath.Join(s.root, taskID, "executions")
}

// validID rejects ids that could escape the store root. Ids are generated
// internally, but the store is also reachable from administrative tooling.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func (s *FileStore) SaveTask(task *Task) error {
	if !validID(task.ID) {
		return fmt.Errorf("invalid task id %q", task.ID)
	}
	mu := s.lock(task.ID)
	mu.Lock()
	defer mu.Unlock()
	return writeDocument(s.taskPath(task.ID), task)
}

func (s *FileStore) LoadTask(id string) (*Task, error) {
	if !validID(id) {
		return nil, ErrTaskNotFound
	}
	data, err := os.ReadFile(s.taskPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to read task %s: %w", id, err)
	}
	task := &Task{}
	if err := json.Unmarshal(data, task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", id, err)
	}
	return task, nil
}

func (s *FileStore) LoadAllTasks() ([]*Task, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read store root: %w", err)
	}
	tasks := make([]*Task, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		task, err := s.LoadTask(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			xlog.Error("Skipping unreadable task document", "file", entry.Name(), "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *FileStore) DeleteTask(id string) error {
	if !validID(id) {
		return ErrTaskNotFound
	}
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	missing := false
	if err := os.Remove(s.taskPath(id)); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete task %s: %w", id, err)
		}
		missing = true
	}
	// Purge the execution history even when the definition is already
	// gone, so a crash between the two removals cannot orphan it.
	if err := os.RemoveAll(filepath.Join(s.root, id)); err != nil {
		return fmt.Errorf("failed to purge executions of %s: %w", id, err)
	}
	s.locks.Delete(id)
	if missing {
		return ErrTaskNotFound
	}
	return nil
}

func (s *FileStore) SaveExecution(taskID string, execution *Execution) error {
	if !validID(taskID) || !validID(execution.ID) {
		return fmt.Errorf("invalid execution path %q/%q", taskID, execution.ID)
	}
	mu := s.lock(taskID)
	mu.Lock()
	defer mu.Unlock()
	path := filepath.Join(s.executionsDir(taskID), execution.ID+".json")
	return writeDocument(path, execution)
}

func (s *FileStore) LoadExecution(taskID, id string) (*Execution, error) {
	if !validID(taskID) || !validID(id) {
		return nil, ErrExecutionNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.executionsDir(taskID), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}
	execution := &Execution{}
	if err := json.Unmarshal(data, execution); err != nil {
		return nil, fmt.Errorf("failed to decode execution %s: %w", id, err)
	}
	return execution, nil
}

func (s *FileStore) ListExecutions(taskID string, limit, offset int) ([]*Execution, int, error) {
	if !validID(taskID) {
		return []*Execution{}, 0, nil
	}
	entries, err := os.ReadDir(s.executionsDir(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*Execution{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read executions of %s: %w", taskID, err)
	}

	executions := make([]*Execution, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		execution, err := s.LoadExecution(taskID, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			xlog.Error("Skipping unreadable execution document", "task_id", taskID, "file", entry.Name(), "error", err)
			continue
		}
		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		if !executions[i].StartTime.Equal(executions[j].StartTime) {
			return executions[i].StartTime.After(executions[j].StartTime)
		}
		return executions[i].ID > executions[j].ID
	})

	total := len(executions)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*Execution{}, total, nil
	}
	executions = executions[offset:]
	if limit > 0 && limit < len(executions) {
		executions = executions[:limit]
	}
	return executions, total, nil
}

// writeDocument marshals v and writes it atomically: temp file in the
// target directory, then rename over the destination.
func writeDocument(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".doc-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}
