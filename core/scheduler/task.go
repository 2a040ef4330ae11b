package scheduler

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// Task is a recurring job definition bound to an agent and a prompt.
type Task struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	AgentID         string     `json:"agentId"`
	ProjectID       string     `json:"projectId,omitempty"`
	CronExpression  string     `json:"cronExpression"`
	Prompt          string     `json:"prompt"`
	Enabled         bool       `json:"enabled"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	LastExecutedAt  *time.Time `json:"lastExecutedAt"`
	NextExecutionAt *time.Time `json:"nextExecutionAt"`
}

// Execution records one firing attempt of a task.
type Execution struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"taskId"`
	StartTime time.Time       `json:"startTime"`
	EndTime   *time.Time      `json:"endTime"`
	Status    ExecutionStatus `json:"status"`
	Result    *Result         `json:"result"`
	Error     string          `json:"error,omitempty"`
	Manual    bool            `json:"manual"`
}

// Result is the collected output of a successful execution.
type Result struct {
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary"`
}

// Message is one entry of an execution's collected output.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewTask builds a task definition with a fresh id and timestamps. The
// cron expression is not validated here; scheduling does that.
func NewTask(name, description, agentID, projectID, cronExpression, prompt string, enabled bool) *Task {
	now := time.Now()
	return &Task{
		ID:             uuid.New().String(),
		Name:           name,
		Description:    description,
		AgentID:        agentID,
		ProjectID:      projectID,
		CronExpression: cronExpression,
		Prompt:         prompt,
		Enabled:        enabled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewExecution creates a running execution record. Ids carry a millisecond
// timestamp prefix so lexical and chronological order agree.
func NewExecution(taskID string, manual bool) *Execution {
	now := time.Now()
	return &Execution{
		ID:        fmt.Sprintf("exec-%d-%04d", now.UnixMilli(), rand.Intn(10000)),
		TaskID:    taskID,
		StartTime: now,
		Status:    ExecutionStatusRunning,
		Manual:    manual,
	}
}

// Finalize moves the execution to a terminal state and stamps the end time.
func (e *Execution) Finalize(status ExecutionStatus, result *Result, errMsg string) {
	now := time.Now()
	e.EndTime = &now
	e.Status = status
	e.Result = result
	e.Error = errMsg
}
