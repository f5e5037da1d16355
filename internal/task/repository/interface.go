// Package repository stores projects, tasks, execution logs and research sheets.
package repository

import (
	"context"
	"errors"

	"github.com/agentboard/agentboard/internal/task/models"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// ErrNotFound is wrapped by every lookup or update that matched no row.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for board storage operations.
type Repository interface {
	// Project operations
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProjectStatus(ctx context.Context, id string, status v1.ProjectStatus) error

	// Task operations
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasksByProject(ctx context.Context, projectID string) ([]*models.Task, error)
	// UpdateTaskStatus sets status, and output when output is non-nil.
	UpdateTaskStatus(ctx context.Context, id string, status v1.TaskStatus, output *string) error

	// Execution log operations
	InsertLog(ctx context.Context, entry *models.ExecutionLog) error
	ListLogs(ctx context.Context, projectID string) ([]*models.ExecutionLog, error)

	// Research sheet operations
	CreateResearchSheet(ctx context.Context, sheet *models.ResearchSheet) error
	ListResearchSheets(ctx context.Context, projectID string) ([]*models.ResearchSheet, error)

	// Close closes the repository (for database connections)
	Close() error
}
