// Package api provides HTTP handlers for the board API.
package api

import v1 "github.com/agentboard/agentboard/pkg/api/v1"

// CreateProjectRequest for creating a project
type CreateProjectRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Identifier  string  `json:"identifier"`
	Mode        v1.Mode `json:"mode"`
}

// UpdateProjectRequest for updating a project
type UpdateProjectRequest struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Identifier  *string           `json:"identifier,omitempty"`
	Mode        *v1.Mode          `json:"mode,omitempty"`
	Status      *v1.ProjectStatus `json:"status,omitempty"`
}

// CreateTaskRequest for creating a task
type CreateTaskRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Priority    v1.TaskPriority `json:"priority"`
	Status      v1.TaskStatus   `json:"status"`
}

// UpdateTaskRequest for updating a task
type UpdateTaskRequest struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Status      *v1.TaskStatus   `json:"status,omitempty"`
	Priority    *v1.TaskPriority `json:"priority,omitempty"`
	Output      *string          `json:"output,omitempty"`
	Position    *int             `json:"position,omitempty"`
}

// AppendLogRequest for writing an execution log row
type AppendLogRequest struct {
	TaskID  string     `json:"taskId"`
	Type    v1.LogType `json:"type"`
	Content string     `json:"content" binding:"required"`
}
