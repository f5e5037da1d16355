// Package service implements the board's project, task, log and research
// sheet operations on top of the repository, publishing a bus event for
// every change.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/agentboard/agentboard/internal/common/errors"
	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/events"
	"github.com/agentboard/agentboard/internal/events/bus"
	"github.com/agentboard/agentboard/internal/task/models"
	"github.com/agentboard/agentboard/internal/task/repository"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

const sourceTaskService = "task-service"

// Service provides board business logic
type Service struct {
	repo     repository.Repository
	eventBus bus.EventBus
	logger   *logger.Logger
}

// NewService creates a new board service. eventBus may be nil.
func NewService(repo repository.Repository, eventBus bus.EventBus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   log.WithFields(zap.String("component", "task-service")),
	}
}

// Request types

// CreateProjectRequest contains the data for creating a new project
type CreateProjectRequest struct {
	Name        string
	Description string
	Identifier  string
	Mode        v1.Mode
}

// UpdateProjectRequest contains the fields to change; nil means unchanged
type UpdateProjectRequest struct {
	Name        *string
	Description *string
	Identifier  *string
	Mode        *v1.Mode
	Status      *v1.ProjectStatus
}

// CreateTaskRequest contains the data for creating a new task
type CreateTaskRequest struct {
	ProjectID   string
	Title       string
	Description string
	Priority    v1.TaskPriority
	Status      v1.TaskStatus
}

// UpdateTaskRequest contains the fields to change; nil means unchanged
type UpdateTaskRequest struct {
	Title       *string
	Description *string
	Status      *v1.TaskStatus
	Priority    *v1.TaskPriority
	Output      *string
	Position    *int
}

// AppendLogRequest contains a log row written by a client
type AppendLogRequest struct {
	ProjectID string
	TaskID    string
	Type      v1.LogType
	Content   string
}

// Project operations

// CreateProject creates a project in idle status and publishes project.created
func (s *Service) CreateProject(ctx context.Context, req *CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.ValidationError("name", "is required")
	}
	mode := req.Mode
	if mode == "" {
		mode = v1.ModeBuild
	}
	if !mode.IsValid() {
		return nil, apperrors.ValidationError("mode", fmt.Sprintf("unknown mode %q", mode))
	}

	project := &models.Project{
		Name:        name,
		Description: req.Description,
		Identifier:  strings.TrimSpace(req.Identifier),
		Mode:        mode,
		Status:      v1.ProjectStatusIdle,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		s.logger.Error("failed to create project", zap.Error(err))
		return nil, apperrors.InternalError("failed to create project", err)
	}
	project.Tasks = []*models.Task{}

	s.publish(ctx, project.ID, events.ProjectCreated, project)
	s.logger.Info("project created", zap.String("project_id", project.ID), zap.String("name", project.Name))
	return project, nil
}

// GetProject returns a project with its tasks in board order
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, s.mapError(err, "project", id)
	}
	if err := s.loadTasks(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns every project with its tasks, newest first
func (s *Service) ListProjects(ctx context.Context) ([]*models.Project, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, apperrors.InternalError("failed to list projects", err)
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	for _, project := range projects {
		if err := s.loadTasks(ctx, project); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// UpdateProject applies a partial update and publishes project.updated
func (s *Service) UpdateProject(ctx context.Context, id string, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, s.mapError(err, "project", id)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.ValidationError("name", "must not be empty")
		}
		project.Name = name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Identifier != nil {
		project.Identifier = strings.TrimSpace(*req.Identifier)
	}
	if req.Mode != nil {
		if !req.Mode.IsValid() {
			return nil, apperrors.ValidationError("mode", fmt.Sprintf("unknown mode %q", *req.Mode))
		}
		project.Mode = *req.Mode
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, apperrors.ValidationError("status", fmt.Sprintf("unknown status %q", *req.Status))
		}
		project.Status = *req.Status
	}

	if err := s.repo.UpdateProject(ctx, project); err != nil {
		s.logger.Error("failed to update project", zap.String("project_id", id), zap.Error(err))
		return nil, s.mapError(err, "project", id)
	}
	if err := s.loadTasks(ctx, project); err != nil {
		return nil, err
	}

	s.publish(ctx, project.ID, events.ProjectUpdated, project)
	s.logger.Info("project updated", zap.String("project_id", project.ID))
	return project, nil
}

// DeleteProject deletes a project with its tasks, logs and sheets
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return s.mapError(err, "project", id)
	}
	s.publish(ctx, id, events.ProjectDeleted, map[string]interface{}{"project_id": id})
	s.logger.Info("project deleted", zap.String("project_id", id))
	return nil
}

// Task operations

// CreateTask appends a task to a project and publishes task.created
func (s *Service) CreateTask(ctx context.Context, req *CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.ValidationError("title", "is required")
	}
	if req.Priority != "" && !req.Priority.IsValid() {
		return nil, apperrors.ValidationError("priority", fmt.Sprintf("unknown priority %q", req.Priority))
	}
	if req.Status != "" && !req.Status.IsValid() {
		return nil, apperrors.ValidationError("status", fmt.Sprintf("unknown status %q", req.Status))
	}

	task := &models.Task{
		ProjectID:   req.ProjectID,
		Title:       title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		s.logger.Error("failed to create task", zap.String("project_id", req.ProjectID), zap.Error(err))
		return nil, s.mapError(err, "project", req.ProjectID)
	}

	s.publish(ctx, task.ProjectID, events.TaskCreated, task)
	s.logger.Info("task created", zap.String("task_id", task.ID), zap.String("title", task.Title))
	return task, nil
}

// UpdateTask applies a partial update to a task of a project and publishes task.updated
func (s *Service) UpdateTask(ctx context.Context, projectID, taskID string, req *UpdateTaskRequest) (*models.Task, error) {
	task, err := s.projectTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperrors.ValidationError("title", "must not be empty")
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, apperrors.ValidationError("status", fmt.Sprintf("unknown status %q", *req.Status))
		}
		task.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.IsValid() {
			return nil, apperrors.ValidationError("priority", fmt.Sprintf("unknown priority %q", *req.Priority))
		}
		task.Priority = *req.Priority
	}
	if req.Output != nil {
		task.Output = *req.Output
	}
	if req.Position != nil {
		task.Position = *req.Position
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		s.logger.Error("failed to update task", zap.String("task_id", taskID), zap.Error(err))
		return nil, s.mapError(err, "task", taskID)
	}

	s.publish(ctx, projectID, events.TaskUpdated, task)
	s.logger.Info("task updated", zap.String("task_id", task.ID))
	return task, nil
}

// DeleteTask deletes a task of a project and publishes task.deleted
func (s *Service) DeleteTask(ctx context.Context, projectID, taskID string) error {
	if _, err := s.projectTask(ctx, projectID, taskID); err != nil {
		return err
	}
	if err := s.repo.DeleteTask(ctx, taskID); err != nil {
		return s.mapError(err, "task", taskID)
	}
	s.publish(ctx, projectID, events.TaskDeleted, map[string]interface{}{"task_id": taskID})
	s.logger.Info("task deleted", zap.String("task_id", taskID))
	return nil
}

// Execution log and research sheet operations

// ListLogs returns a project's execution log in timestamp order
func (s *Service) ListLogs(ctx context.Context, projectID string) ([]*models.ExecutionLog, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, s.mapError(err, "project", projectID)
	}
	logs, err := s.repo.ListLogs(ctx, projectID)
	if err != nil {
		return nil, apperrors.InternalError("failed to list logs", err)
	}
	if logs == nil {
		logs = []*models.ExecutionLog{}
	}
	return logs, nil
}

// AppendLog stores a client-supplied log row
func (s *Service) AppendLog(ctx context.Context, req *AppendLogRequest) (*models.ExecutionLog, error) {
	logType := req.Type
	if logType == "" {
		logType = v1.LogTypeInfo
	}
	if !logType.IsValid() {
		return nil, apperrors.ValidationError("type", fmt.Sprintf("unknown log type %q", req.Type))
	}
	entry := &models.ExecutionLog{
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		Type:      logType,
		Content:   req.Content,
	}
	if _, err := s.repo.GetProject(ctx, req.ProjectID); err != nil {
		return nil, s.mapError(err, "project", req.ProjectID)
	}
	if err := s.repo.InsertLog(ctx, entry); err != nil {
		return nil, s.mapError(err, "project", req.ProjectID)
	}
	s.publish(ctx, req.ProjectID, events.LogAppended, entry)
	return entry, nil
}

// ListResearchSheets returns a project's research sheets in creation order
func (s *Service) ListResearchSheets(ctx context.Context, projectID string) ([]*models.ResearchSheet, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, s.mapError(err, "project", projectID)
	}
	sheets, err := s.repo.ListResearchSheets(ctx, projectID)
	if err != nil {
		return nil, apperrors.InternalError("failed to list research sheets", err)
	}
	if sheets == nil {
		sheets = []*models.ResearchSheet{}
	}
	return sheets, nil
}

// projectTask loads a task and checks it belongs to projectID.
func (s *Service) projectTask(ctx context.Context, projectID, taskID string) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, s.mapError(err, "task", taskID)
	}
	if task.ProjectID != projectID {
		return nil, apperrors.NotFound("task", taskID)
	}
	return task, nil
}

func (s *Service) loadTasks(ctx context.Context, project *models.Project) error {
	tasks, err := s.repo.ListTasksByProject(ctx, project.ID)
	if err != nil {
		return apperrors.InternalError("failed to list tasks", err)
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	project.Tasks = tasks
	return nil
}

// mapError turns a repository not-found into a 404 and anything else into a 500.
func (s *Service) mapError(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, id)
	}
	return apperrors.InternalError(fmt.Sprintf("%s operation failed", resource), err)
}

// publish sends a board event on the project's subject, so WebSocket
// clients watching a project see edits next to run progress.
func (s *Service) publish(ctx context.Context, projectID, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	event := bus.NewEvent(eventType, sourceTaskService, data)
	if err := s.eventBus.Publish(ctx, bus.ProjectSubject(projectID), event); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.String("project_id", projectID),
			zap.Error(err))
	}
}
