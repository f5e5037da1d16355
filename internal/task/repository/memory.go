package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentboard/agentboard/internal/task/models"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// MemoryRepository provides in-memory board storage. Values are copied on the
// way in and out so callers never share state with the store.
type MemoryRepository struct {
	projects map[string]*models.Project
	tasks    map[string]*models.Task
	logs     map[string][]*models.ExecutionLog
	sheets   map[string][]*models.ResearchSheet
	mu       sync.RWMutex
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[string]*models.Project),
		tasks:    make(map[string]*models.Task),
		logs:     make(map[string][]*models.ExecutionLog),
		sheets:   make(map[string][]*models.ResearchSheet),
	}
}

// Close is a no-op for in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}

// Project operations

// CreateProject creates a new project
func (r *MemoryRepository) CreateProject(ctx context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if _, exists := r.projects[project.ID]; exists {
		return fmt.Errorf("project already exists: %s", project.ID)
	}
	if project.Status == "" {
		project.Status = v1.ProjectStatusIdle
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	r.projects[project.ID] = copyProject(project)
	return nil
}

// GetProject retrieves a project by ID, without its tasks
func (r *MemoryRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return copyProject(project), nil
}

// UpdateProject updates an existing project
func (r *MemoryRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.projects[project.ID]
	if !ok {
		return fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}
	project.CreatedAt = existing.CreatedAt
	project.UpdatedAt = time.Now().UTC()
	r.projects[project.ID] = copyProject(project)
	return nil
}

// DeleteProject deletes a project with its tasks, logs and sheets
func (r *MemoryRepository) DeleteProject(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	delete(r.projects, id)
	for taskID, task := range r.tasks {
		if task.ProjectID == id {
			delete(r.tasks, taskID)
		}
	}
	delete(r.logs, id)
	delete(r.sheets, id)
	return nil
}

// ListProjects returns all projects, newest first
func (r *MemoryRepository) ListProjects(ctx context.Context) ([]*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Project, 0, len(r.projects))
	for _, project := range r.projects {
		result = append(result, copyProject(project))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateProjectStatus sets a project's run status
func (r *MemoryRepository) UpdateProjectStatus(ctx context.Context, id string, status v1.ProjectStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	project, ok := r.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	project.Status = status
	project.UpdatedAt = time.Now().UTC()
	return nil
}

// Task operations

// CreateTask appends a task to its project
func (r *MemoryRepository) CreateTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[task.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", task.ProjectID, ErrNotFound)
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = v1.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = v1.PriorityMedium
	}
	position := 0
	for _, t := range r.tasks {
		if t.ProjectID == task.ProjectID && t.Position >= position {
			position = t.Position + 1
		}
	}
	task.Position = position
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	r.tasks[task.ID] = copyTask(task)
	return nil
}

// GetTask retrieves a task by ID
func (r *MemoryRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return copyTask(task), nil
}

// UpdateTask updates an existing task's editable fields
func (r *MemoryRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	task.ProjectID = existing.ProjectID
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now().UTC()
	r.tasks[task.ID] = copyTask(task)
	return nil
}

// DeleteTask deletes a task
func (r *MemoryRepository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(r.tasks, id)
	return nil
}

// ListTasksByProject returns a project's tasks in board order
func (r *MemoryRepository) ListTasksByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Task
	for _, task := range r.tasks {
		if task.ProjectID == projectID {
			result = append(result, copyTask(task))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateTaskStatus sets a task's status, and its output when output is non-nil
func (r *MemoryRepository) UpdateTaskStatus(ctx context.Context, id string, status v1.TaskStatus, output *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	task.Status = status
	if output != nil {
		task.Output = *output
	}
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// Execution log operations

// InsertLog appends a log entry. A zero Timestamp is set to now.
func (r *MemoryRepository) InsertLog(ctx context.Context, entry *models.ExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[entry.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", entry.ProjectID, ErrNotFound)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	e := *entry
	r.logs[entry.ProjectID] = append(r.logs[entry.ProjectID], &e)
	return nil
}

// ListLogs returns a project's log entries by ascending timestamp
func (r *MemoryRepository) ListLogs(ctx context.Context, projectID string) ([]*models.ExecutionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.logs[projectID]
	result := make([]*models.ExecutionLog, 0, len(entries))
	for _, entry := range entries {
		e := *entry
		result = append(result, &e)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// Research sheet operations

// CreateResearchSheet stores a research sheet
func (r *MemoryRepository) CreateResearchSheet(ctx context.Context, sheet *models.ResearchSheet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[sheet.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", sheet.ProjectID, ErrNotFound)
	}
	if sheet.ID == "" {
		sheet.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sheet.CreatedAt = now
	sheet.UpdatedAt = now
	s := *sheet
	r.sheets[sheet.ProjectID] = append(r.sheets[sheet.ProjectID], &s)
	return nil
}

// ListResearchSheets returns a project's sheets in creation order
func (r *MemoryRepository) ListResearchSheets(ctx context.Context, projectID string) ([]*models.ResearchSheet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sheets := r.sheets[projectID]
	result := make([]*models.ResearchSheet, 0, len(sheets))
	for _, sheet := range sheets {
		s := *sheet
		result = append(result, &s)
	}
	return result, nil
}

func copyProject(p *models.Project) *models.Project {
	c := *p
	c.Tasks = nil
	return &c
}

func copyTask(t *models.Task) *models.Task {
	c := *t
	return &c
}
