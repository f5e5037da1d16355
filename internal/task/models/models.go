// Package models holds the board entities persisted by the repository.
package models

import (
	"time"

	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// Project groups tasks that run together.
type Project struct {
	ID          string           `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Description string           `json:"description" db:"description"`
	Identifier  string           `json:"identifier" db:"identifier"`
	Mode        v1.Mode          `json:"mode" db:"mode"`
	Status      v1.ProjectStatus `json:"status" db:"status"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
	Tasks       []*Task          `json:"tasks" db:"-"`
}

// Task is one unit of agent work. Output holds the last result or error text.
type Task struct {
	ID          string          `json:"id" db:"id"`
	ProjectID   string          `json:"projectId" db:"project_id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Status      v1.TaskStatus   `json:"status" db:"status"`
	Priority    v1.TaskPriority `json:"priority" db:"priority"`
	Output      string          `json:"output" db:"output"`
	Position    int             `json:"position" db:"position"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// ExecutionLog is an append-only audit row. An empty TaskID means project scope.
type ExecutionLog struct {
	ID        string     `json:"id" db:"id"`
	ProjectID string     `json:"projectId" db:"project_id"`
	TaskID    string     `json:"taskId" db:"task_id"`
	Timestamp time.Time  `json:"timestamp" db:"logged_at"`
	Type      v1.LogType `json:"type" db:"type"`
	Content   string     `json:"content" db:"content"`
}

// ResearchSheet is the markdown report of one completed research task.
type ResearchSheet struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"projectId" db:"project_id"`
	TaskID    string    `json:"taskId" db:"task_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
