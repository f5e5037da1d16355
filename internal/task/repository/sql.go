package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agentboard/agentboard/internal/db"
	"github.com/agentboard/agentboard/internal/task/models"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// SQLRepository stores the board in SQLite or PostgreSQL. Writes go through the
// writer handle, reads through the reader; queries are written with ? and
// rebound for the driver.
type SQLRepository struct {
	db   *sqlx.DB
	ro   *sqlx.DB
	pool *db.Pool
}

// Ensure SQLRepository implements Repository interface
var _ Repository = (*SQLRepository)(nil)

// NewSQLRepository creates the schema if needed and returns a repository on pool.
func NewSQLRepository(pool *db.Pool) (*SQLRepository, error) {
	repo := &SQLRepository{db: pool.Writer(), ro: pool.Reader(), pool: pool}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

// initSchema creates the database tables if they don't exist
func (r *SQLRepository) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			identifier TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT 'build',
			status TEXT NOT NULL DEFAULT 'idle',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo',
			priority TEXT NOT NULL DEFAULT 'medium',
			output TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS execution_logs (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			task_id TEXT NOT NULL DEFAULT '',
			logged_at TIMESTAMP NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS research_sheets (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			task_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_logs_project_id ON execution_logs(project_id, logged_at)`,
		`CREATE INDEX IF NOT EXISTS idx_research_sheets_project_id ON research_sheets(project_id)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connections
func (r *SQLRepository) Close() error {
	return r.pool.Close()
}

// Project operations

// CreateProject creates a new project
func (r *SQLRepository) CreateProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.Status == "" {
		project.Status = v1.ProjectStatusIdle
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO projects (id, name, description, identifier, mode, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), project.ID, project.Name, project.Description, project.Identifier, project.Mode, project.Status,
		project.CreatedAt, project.UpdatedAt)
	return err
}

// GetProject retrieves a project by ID, without its tasks
func (r *SQLRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project := &models.Project{}
	err := r.ro.GetContext(ctx, project, r.ro.Rebind(`
		SELECT id, name, description, identifier, mode, status, created_at, updated_at
		FROM projects WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateProject updates an existing project's editable fields
func (r *SQLRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE projects SET name = ?, description = ?, identifier = ?, mode = ?, status = ?, updated_at = ?
		WHERE id = ?
	`), project.Name, project.Description, project.Identifier, project.Mode, project.Status, project.UpdatedAt, project.ID)
	if err != nil {
		return err
	}
	return requireRow(result, "project", project.ID)
}

// DeleteProject deletes a project; tasks, logs and sheets cascade
func (r *SQLRepository) DeleteProject(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireRow(result, "project", id)
}

// ListProjects returns all projects, newest first
func (r *SQLRepository) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	err := r.ro.SelectContext(ctx, &projects, `
		SELECT id, name, description, identifier, mode, status, created_at, updated_at
		FROM projects ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// UpdateProjectStatus sets a project's run status
func (r *SQLRepository) UpdateProjectStatus(ctx context.Context, id string, status v1.ProjectStatus) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE projects SET status = ?, updated_at = ? WHERE id = ?
	`), status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(result, "project", id)
}

// Task operations

// CreateTask appends a task after the project's last position
func (r *SQLRepository) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = v1.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = v1.PriorityMedium
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(1) FROM projects WHERE id = ?`), task.ProjectID)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("project %s: %w", task.ProjectID, ErrNotFound)
	}

	err = tx.GetContext(ctx, &task.Position, tx.Rebind(`
		SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE project_id = ?
	`), task.ProjectID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO tasks (id, project_id, title, description, status, priority, output, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), task.ID, task.ProjectID, task.Title, task.Description, task.Status, task.Priority, task.Output,
		task.Position, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetTask retrieves a task by ID
func (r *SQLRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task := &models.Task{}
	err := r.ro.GetContext(ctx, task, r.ro.Rebind(`
		SELECT id, project_id, title, description, status, priority, output, position, created_at, updated_at
		FROM tasks WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask updates an existing task's editable fields
func (r *SQLRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, output = ?, position = ?, updated_at = ?
		WHERE id = ?
	`), task.Title, task.Description, task.Status, task.Priority, task.Output, task.Position, task.UpdatedAt, task.ID)
	if err != nil {
		return err
	}
	return requireRow(result, "task", task.ID)
}

// DeleteTask deletes a task
func (r *SQLRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireRow(result, "task", id)
}

// ListTasksByProject returns a project's tasks in board order
func (r *SQLRepository) ListTasksByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	var tasks []*models.Task
	err := r.ro.SelectContext(ctx, &tasks, r.ro.Rebind(`
		SELECT id, project_id, title, description, status, priority, output, position, created_at, updated_at
		FROM tasks WHERE project_id = ? ORDER BY position, created_at
	`), projectID)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTaskStatus sets a task's status, and its output when output is non-nil
func (r *SQLRepository) UpdateTaskStatus(ctx context.Context, id string, status v1.TaskStatus, output *string) error {
	var (
		result sql.Result
		err    error
		now    = time.Now().UTC()
	)
	if output != nil {
		result, err = r.db.ExecContext(ctx, r.db.Rebind(`
			UPDATE tasks SET status = ?, output = ?, updated_at = ? WHERE id = ?
		`), status, *output, now, id)
	} else {
		result, err = r.db.ExecContext(ctx, r.db.Rebind(`
			UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?
		`), status, now, id)
	}
	if err != nil {
		return err
	}
	return requireRow(result, "task", id)
}

// Execution log operations

// InsertLog appends a log entry. A zero Timestamp is set to now.
func (r *SQLRepository) InsertLog(ctx context.Context, entry *models.ExecutionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO execution_logs (id, project_id, task_id, logged_at, type, content)
		VALUES (?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.ProjectID, entry.TaskID, entry.Timestamp, entry.Type, entry.Content)
	return err
}

// ListLogs returns a project's log entries by ascending timestamp
func (r *SQLRepository) ListLogs(ctx context.Context, projectID string) ([]*models.ExecutionLog, error) {
	var entries []*models.ExecutionLog
	err := r.ro.SelectContext(ctx, &entries, r.ro.Rebind(`
		SELECT id, project_id, task_id, logged_at, type, content
		FROM execution_logs WHERE project_id = ? ORDER BY logged_at
	`), projectID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Research sheet operations

// CreateResearchSheet stores a research sheet
func (r *SQLRepository) CreateResearchSheet(ctx context.Context, sheet *models.ResearchSheet) error {
	if sheet.ID == "" {
		sheet.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sheet.CreatedAt = now
	sheet.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO research_sheets (id, project_id, task_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), sheet.ID, sheet.ProjectID, sheet.TaskID, sheet.Content, sheet.CreatedAt, sheet.UpdatedAt)
	return err
}

// ListResearchSheets returns a project's sheets in creation order
func (r *SQLRepository) ListResearchSheets(ctx context.Context, projectID string) ([]*models.ResearchSheet, error) {
	var sheets []*models.ResearchSheet
	err := r.ro.SelectContext(ctx, &sheets, r.ro.Rebind(`
		SELECT id, project_id, task_id, content, created_at, updated_at
		FROM research_sheets WHERE project_id = ? ORDER BY created_at
	`), projectID)
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

func requireRow(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
