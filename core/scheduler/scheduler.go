package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/mudler/xlog"
	"github.com/robfig/cron/v3"

	"github.com/opsagent/platform/core/types"
)

// Scheduler fires cron-scheduled tasks against an agent invoker and
// records every attempt durably. Cron entries only enqueue fire requests;
// a worker pool drains the queue and runs the execution pipeline, with
// per-task single-flight enforced by the run guard regardless of worker
// count.
type Scheduler struct {
	tasks      TaskStore
	executions ExecutionStore
	invoker    types.Invoker
	guard      *RunGuard
	registry   *registry
	cron       *cron.Cron

	// adminMu serializes whole administrative operations, from loading
	// the document through persisting it and reconciling the registry.
	// Store and registry therefore never diverge for longer than one
	// operation.
	adminMu sync.Mutex

	workers       int
	queueSize     int
	timeout       time.Duration
	summaryLen    int
	listener      func(Execution)
	buildSchedule func(expr string) (cron.Schedule, error)

	mu      sync.Mutex
	started bool
	queue   chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a scheduler. Nothing fires until Start is called; the
// administrative operations work either way.
func New(tasks TaskStore, executions ExecutionStore, invoker types.Invoker, opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:      tasks,
		executions: executions,
		invoker:    invoker,
		guard:      NewRunGuard(),
		registry:   newRegistry(),
		cron:       cron.New(cron.WithParser(cronParser)),
		workers:       4,
		queueSize:     64,
		timeout:       10 * time.Minute,
		summaryLen:    200,
		buildSchedule: ParseCronExpression,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads every enabled task from the store, registers its job and
// begins firing. Tasks that fail to schedule are logged and skipped;
// only an unreadable store root aborts startup.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		xlog.Warn("Scheduler already started")
		return nil
	}

	tasks, err := s.tasks.LoadAllTasks()
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	for _, task := range tasks {
		if !task.Enabled {
			// Enforce the invariant for documents left behind by an
			// unclean shutdown.
			if task.NextExecutionAt != nil {
				task.NextExecutionAt = nil
				if err := s.tasks.SaveTask(task); err != nil {
					xlog.Error("Failed to clear next execution time", "task_id", task.ID, "error", err)
				}
			}
			continue
		}
		if err := s.Add(task); err != nil {
			xlog.Error("Failed to schedule task, skipping", "task_id", task.ID, "error", err)
			continue
		}
		xlog.Info("Loaded task", "task_id", task.ID, "name", task.Name, "cron", task.CronExpression)
	}

	s.queue = make(chan string, s.queueSize)
	s.stopCh = make(chan struct{})
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.cron.Start()
	s.started = true
	xlog.Info("Task scheduler started", "jobs", s.registry.len(), "workers", s.workers)
	return nil
}

// Stop halts future fires and waits for in-flight executions to finish
// and persist their terminal state. It does not cancel them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	close(s.stopCh)
	s.wg.Wait()
	s.started = false
	xlog.Info("Task scheduler stopped")
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case taskID := <-s.queue:
			s.ExecuteTask(context.Background(), taskID, false)
		}
	}
}

// enqueue hands a fire to the worker pool. A fire that finds the queue
// full is dropped, but leaves a skipped record so it stays visible in
// the execution history.
func (s *Scheduler) enqueue(taskID string) {
	select {
	case s.queue <- taskID:
	default:
		xlog.Warn("Fire queue full, dropping fire", "task_id", taskID)
		execution := NewExecution(taskID, false)
		execution.Finalize(ExecutionStatusSkipped, nil, "fire queue full")
		s.persist(execution)
	}
}

// Add registers (or atomically replaces) the registry entry for an
// enabled task and persists its recomputed next execution time.
func (s *Scheduler) Add(task *Task) error {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	return s.addLocked(task)
}

func (s *Scheduler) addLocked(task *Task) error {
	if !task.Enabled {
		return fmt.Errorf("task %s is disabled", task.ID)
	}
	schedule, err := s.buildSchedule(task.CronExpression)
	if err != nil {
		return err
	}

	if old, ok := s.registry.get(task.ID); ok {
		s.cron.Remove(old.entryID)
	}
	taskID := task.ID
	entryID := s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.enqueue(taskID)
	}))

	next := schedule.Next(time.Now())
	s.registry.put(task.ID, jobEntry{entryID: entryID, expr: task.CronExpression, next: next})

	if next.IsZero() {
		task.NextExecutionAt = nil
	} else {
		task.NextExecutionAt = &next
	}
	if err := s.tasks.SaveTask(task); err != nil {
		// Registry and disk may diverge briefly; the registry is rebuilt
		// from disk on restart.
		xlog.Error("Failed to persist next execution time", "task_id", task.ID, "error", err)
	}
	xlog.Info("Added task", "task_id", task.ID, "cron", task.CronExpression, "next", next)
	return nil
}

// Remove drops the registry entry for the task. Absent entries are a
// no-op, not an error.
func (s *Scheduler) Remove(taskID string) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	s.removeLocked(taskID)
}

func (s *Scheduler) removeLocked(taskID string) {
	entry, ok := s.registry.get(taskID)
	if !ok {
		return
	}
	s.cron.Remove(entry.entryID)
	s.registry.delete(taskID)
	xlog.Info("Removed task", "task_id", taskID)
}

// Update re-registers the task: remove, then add if enabled. The ordering
// guarantees no stale trigger survives a cron-expression change.
func (s *Scheduler) Update(task *Task) error {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	s.removeLocked(task.ID)
	if task.Enabled {
		return s.addLocked(task)
	}
	return nil
}

// Scheduled reports whether the task has a live registry entry.
func (s *Scheduler) Scheduled(taskID string) bool {
	_, ok := s.registry.get(taskID)
	return ok
}

// NextRun returns the registered next fire time for the task.
func (s *Scheduler) NextRun(taskID string) (time.Time, bool) {
	entry, ok := s.registry.get(taskID)
	return entry.next, ok
}

// ExecuteTask runs the fire pipeline for one task, scheduled or manual,
// and always returns a persisted execution record. Failures are fully
// contained in that record and never affect other tasks or future fires.
func (s *Scheduler) ExecuteTask(ctx context.Context, taskID string, manual bool) *Execution {
	if !s.guard.TryAcquire(taskID) {
		xlog.Warn("Task already running, skipping execution", "task_id", taskID, "manual", manual)
		execution := NewExecution(taskID, manual)
		execution.Finalize(ExecutionStatusSkipped, nil, "task is already running")
		s.persist(execution)
		return execution
	}
	defer s.guard.Release(taskID)

	task, err := s.tasks.LoadTask(taskID)
	if err != nil {
		xlog.Error("Cannot execute unknown task", "task_id", taskID, "error", err)
		execution := NewExecution(taskID, manual)
		if errors.Is(err, ErrTaskNotFound) {
			execution.Finalize(ExecutionStatusFailed, nil, "task not found")
		} else {
			execution.Finalize(ExecutionStatusFailed, nil, fmt.Sprintf("failed to load task: %v", err))
		}
		s.persist(execution)
		return execution
	}

	execution := NewExecution(taskID, manual)
	s.persist(execution)
	if manual {
		xlog.Info("Manually triggered execution", "execution_id", execution.ID, "task_id", taskID)
	} else {
		xlog.Info("Scheduled execution", "execution_id", execution.ID, "task_id", taskID)
	}

	result, runErr, timedOut := s.invoke(ctx, task)

	switch {
	case timedOut:
		execution.Finalize(ExecutionStatusFailed, nil, "execution timeout")
		xlog.Error("Execution timed out", "execution_id", execution.ID, "task_id", taskID)
	case runErr != nil:
		execution.Finalize(ExecutionStatusFailed, nil, runErr.Error())
		xlog.Error("Execution failed", "execution_id", execution.ID, "task_id", taskID, "error", runErr)
	default:
		execution.Finalize(ExecutionStatusSuccess, result, "")
		xlog.Info("Execution completed", "execution_id", execution.ID, "task_id", taskID,
			"duration", execution.EndTime.Sub(execution.StartTime))
	}

	s.persist(execution)
	s.touchAfterExecution(taskID, execution)
	return execution
}

// invoke runs the agent invocation under the execution timeout and
// collects the response stream into a result.
func (s *Scheduler) invoke(ctx context.Context, task *Task) (result *Result, runErr error, timedOut bool) {
	invCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stream, err := s.invoker.Invoke(invCtx, task.AgentID, task.Prompt)
	if err != nil {
		return nil, err, isTimeout(invCtx, err)
	}
	defer stream.Close()

	messages := []Message{}
	summary := ""
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err, isTimeout(invCtx, err)
		}
		switch f := fragment.(type) {
		case types.TextFragment:
			if f.Text == "" {
				continue
			}
			messages = append(messages, Message{Role: "assistant", Content: f.Text})
			summary = truncate(f.Text, s.summaryLen)
		case types.ToolCallFragment:
			messages = append(messages, Message{Role: "assistant", Content: fmt.Sprintf("tool call: %s(%s)", f.Name, f.Arguments)})
		case types.ToolResultFragment:
			messages = append(messages, Message{Role: "tool", Content: f.Content})
		case types.ErrorFragment:
			return nil, f.Err, isTimeout(invCtx, f.Err)
		}
	}

	if summary == "" {
		summary = "execution completed"
	}
	return &Result{Messages: messages, Summary: summary}, nil, false
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// persist saves the execution record and notifies the listener. Storage
// failures are logged, never propagated: the record is bookkeeping, not
// control flow.
func (s *Scheduler) persist(execution *Execution) {
	if err := s.executions.SaveExecution(execution.TaskID, execution); err != nil {
		xlog.Error("Failed to persist execution", "execution_id", execution.ID, "task_id", execution.TaskID, "error", err)
	}
	if s.listener != nil {
		s.listener(*execution)
	}
}

// touchAfterExecution refreshes the task document after a terminal
// execution: last-executed on success, and the advanced next fire time
// when the task is still registered.
func (s *Scheduler) touchAfterExecution(taskID string, execution *Execution) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	task, err := s.tasks.LoadTask(taskID)
	if err != nil {
		return
	}
	if execution.Status == ExecutionStatusSuccess {
		task.LastExecutedAt = execution.EndTime
	}
	if entry, ok := s.registry.get(taskID); ok {
		if schedule, err := s.buildSchedule(entry.expr); err == nil {
			if next := schedule.Next(time.Now()); !next.IsZero() {
				entry.next = next
				s.registry.put(taskID, entry)
				task.NextExecutionAt = &next
			}
		}
	}
	if err := s.tasks.SaveTask(task); err != nil {
		xlog.Error("Failed to update task after execution", "task_id", taskID, "error", err)
	}
}

// --- administrative operations -----------------------------------------

// CreateTask validates and persists a new task definition, scheduling it
// when enabled. Like every admin operation it holds adminMu from persist
// through reconcile, so concurrent admin calls never interleave inside
// one another.
func (s *Scheduler) CreateTask(task *Task) error {
	if _, err := s.buildSchedule(task.CronExpression); err != nil {
		return err
	}
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	if err := s.tasks.SaveTask(task); err != nil {
		return err
	}
	if task.Enabled {
		return s.addLocked(task)
	}
	return nil
}

// GetTask retrieves a task definition.
func (s *Scheduler) GetTask(id string) (*Task, error) {
	return s.tasks.LoadTask(id)
}

// ListTasks returns every task, newest first.
func (s *Scheduler) ListTasks() ([]*Task, error) {
	tasks, err := s.tasks.LoadAllTasks()
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// UpdateTask persists a changed definition and reconciles its scheduling
// state, in that order, as one serialized operation.
func (s *Scheduler) UpdateTask(task *Task) error {
	if _, err := s.buildSchedule(task.CronExpression); err != nil {
		return err
	}
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	task.UpdatedAt = time.Now()
	if !task.Enabled {
		task.NextExecutionAt = nil
	}
	if err := s.tasks.SaveTask(task); err != nil {
		return err
	}
	s.removeLocked(task.ID)
	if task.Enabled {
		return s.addLocked(task)
	}
	return nil
}

// DeleteTask deschedules the task, then destroys the definition and all
// of its executions.
func (s *Scheduler) DeleteTask(id string) error {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	s.removeLocked(id)
	if err := s.tasks.DeleteTask(id); err != nil {
		return err
	}
	xlog.Info("Deleted task", "task_id", id)
	return nil
}

// EnableTask switches a task on and schedules it.
func (s *Scheduler) EnableTask(id string) (*Task, error) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	task, err := s.tasks.LoadTask(id)
	if err != nil {
		return nil, err
	}
	task.Enabled = true
	task.UpdatedAt = time.Now()
	if err := s.tasks.SaveTask(task); err != nil {
		return nil, err
	}
	if err := s.addLocked(task); err != nil {
		return nil, err
	}
	return task, nil
}

// DisableTask switches a task off and deschedules it; its next execution
// time becomes null while disabled.
func (s *Scheduler) DisableTask(id string) (*Task, error) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	task, err := s.tasks.LoadTask(id)
	if err != nil {
		return nil, err
	}
	task.Enabled = false
	task.NextExecutionAt = nil
	task.UpdatedAt = time.Now()
	if err := s.tasks.SaveTask(task); err != nil {
		return nil, err
	}
	s.removeLocked(id)
	return task, nil
}

// TriggerTask fires the task immediately, bypassing the schedule but not
// the single-flight guard: a concurrent run yields a skipped record, it
// is not queued.
func (s *Scheduler) TriggerTask(ctx context.Context, id string) *Execution {
	return s.ExecuteTask(ctx, id, true)
}

// GetExecution retrieves one execution record.
func (s *Scheduler) GetExecution(taskID, id string) (*Execution, error) {
	return s.executions.LoadExecution(taskID, id)
}

// ListExecutions returns a page of the task's execution history, newest
// first, plus the total count.
func (s *Scheduler) ListExecutions(taskID string, limit, offset int) ([]*Execution, int, error) {
	return s.executions.ListExecutions(taskID, limit, offset)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
