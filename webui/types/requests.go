package types

// CreateTaskRequest is the payload for creating a scheduled task.
type CreateTaskRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	AgentID        string `json:"agentId"`
	ProjectID      string `json:"projectId"`
	CronExpression string `json:"cronExpression"`
	Prompt         string `json:"prompt"`
	Enabled        bool   `json:"enabled"`
}

// UpdateTaskRequest is the payload for a partial task update; nil fields
// are left untouched.
type UpdateTaskRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	AgentID        *string `json:"agentId"`
	ProjectID      *string `json:"projectId"`
	CronExpression *string `json:"cronExpression"`
	Prompt         *string `json:"prompt"`
	Enabled        *bool   `json:"enabled"`
}
