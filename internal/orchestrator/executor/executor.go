// Package executor admits runs: it enforces one active run per project and a
// global concurrency cap, prepares the task list and workspace, and keeps the
// cancel handle of every active run.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/agentboard/agentboard/internal/common/errors"
	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/orchestrator/queue"
	"github.com/agentboard/agentboard/internal/task/models"
	"github.com/agentboard/agentboard/internal/task/repository"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

const defaultMaxConcurrent = 4

// Store is the part of the board repository the executor reads and resets.
type Store interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListTasksByProject(ctx context.Context, projectID string) ([]*models.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status v1.TaskStatus, output *string) error
}

// Executor tracks active runs.
type Executor struct {
	store     Store
	workspace *Workspace
	logger    *logger.Logger

	runs          map[string]*Run
	mu            sync.Mutex
	maxConcurrent int
}

// NewExecutor creates a new executor
func NewExecutor(store Store, workspace *Workspace, log *logger.Logger, maxConcurrent int) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Executor{
		store:         store,
		workspace:     workspace,
		logger:        log.WithFields(zap.String("component", "executor")),
		runs:          make(map[string]*Run),
		maxConcurrent: maxConcurrent,
	}
}

// Start validates and admits a run. The returned run's context derives from
// ctx, so cancelling ctx (a client disconnect) cancels the run. The caller
// must call Finish when the run ends.
func (e *Executor) Start(ctx context.Context, req v1.RunRequest) (*Run, error) {
	if req.Mode != "" && !req.Mode.IsValid() {
		return nil, apperrors.ValidationError("mode", fmt.Sprintf("unknown mode %q", req.Mode))
	}
	if req.ProjectID == "" && len(req.Tasks) == 0 {
		return nil, apperrors.BadRequest("tasks are required when no projectId is given")
	}

	key := req.ProjectID
	if key == "" {
		// Ad-hoc runs never collide; they only count against the cap.
		key = "adhoc:" + uuid.New().String()
	}
	if err := e.reserve(key); err != nil {
		return nil, err
	}
	run, err := e.prepare(ctx, req)
	if err != nil {
		e.release(key)
		return nil, err
	}
	run.key = key

	e.mu.Lock()
	e.runs[key] = run
	e.mu.Unlock()

	e.logger.Info("run started",
		zap.String("run_id", run.ID),
		zap.String("project_id", run.ProjectID),
		zap.String("mode", string(run.Mode)),
		zap.Int("tasks", len(run.Tasks)))
	return run, nil
}

// reserve claims a slot under key before any I/O, so a concurrent request
// for the same project sees the conflict while this one is being prepared.
func (e *Executor) reserve(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.runs[key]; exists {
		return apperrors.Conflict(fmt.Sprintf("project %s already has an active run", key))
	}
	if len(e.runs) >= e.maxConcurrent {
		e.logger.Warn("max concurrent runs reached", zap.Int("max", e.maxConcurrent))
		return apperrors.TooManyRequests("maximum concurrent runs reached")
	}
	e.runs[key] = nil
	return nil
}

func (e *Executor) release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if run, ok := e.runs[key]; ok && run == nil {
		delete(e.runs, key)
	}
}

func (e *Executor) prepare(ctx context.Context, req v1.RunRequest) (*Run, error) {
	var projectTasks []*models.Task
	if req.ProjectID != "" {
		project, err := e.store.GetProject(ctx, req.ProjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NotFound("project", req.ProjectID)
			}
			return nil, apperrors.InternalError("failed to load project", err)
		}
		if project.Status == v1.ProjectStatusExecuting {
			return nil, apperrors.Conflict(fmt.Sprintf("project %s is already executing", project.ID))
		}
		if req.ProjectName == "" {
			req.ProjectName = project.Name
		}
		if req.ProjectIdentifier == "" {
			req.ProjectIdentifier = project.Identifier
		}
		if req.Mode == "" {
			req.Mode = project.Mode
		}

		projectTasks, err = e.store.ListTasksByProject(ctx, req.ProjectID)
		if err != nil {
			return nil, apperrors.InternalError("failed to list project tasks", err)
		}
	}
	if req.Mode == "" {
		req.Mode = v1.ModeBuild
	}

	req.Tasks = runnableTasks(req.Tasks, projectTasks)

	var workDir string
	if req.Mode == v1.ModeBuild {
		dir, err := e.workspace.Ensure(req.ProjectName, req.ProjectIdentifier)
		if errors.Is(err, ErrInvalidWorkspace) {
			return nil, apperrors.BadRequest(err.Error())
		}
		if err != nil {
			return nil, apperrors.InternalError("failed to provision workspace", err)
		}
		workDir = dir
	}

	e.resetTasks(ctx, projectTasks)
	return NewRun(ctx, req, workDir), nil
}

// runnableTasks drops tasks already done. An empty request list is built
// from the project's unfinished tasks in priority order.
func runnableTasks(requested []v1.RunTask, projectTasks []*models.Task) []v1.RunTask {
	done := make(map[string]bool)
	var pending []*models.Task
	for _, t := range projectTasks {
		if t.Status == v1.TaskStatusDone {
			done[t.ID] = true
		} else {
			pending = append(pending, t)
		}
	}

	if len(requested) == 0 {
		ordered := queue.Order(pending)
		tasks := make([]v1.RunTask, 0, len(ordered))
		for _, t := range ordered {
			tasks = append(tasks, v1.RunTask{ID: t.ID, Title: t.Title, Description: t.Description})
		}
		return tasks
	}

	tasks := make([]v1.RunTask, 0, len(requested))
	for _, t := range requested {
		if !done[t.ID] {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// resetTasks moves every unfinished task back to todo with empty output.
// Failures are logged; the run proceeds either way.
func (e *Executor) resetTasks(ctx context.Context, tasks []*models.Task) {
	empty := ""
	for _, t := range tasks {
		if t.Status == v1.TaskStatusDone {
			continue
		}
		if err := e.store.UpdateTaskStatus(ctx, t.ID, v1.TaskStatusTodo, &empty); err != nil {
			e.logger.Warn("failed to reset task", zap.String("task_id", t.ID), zap.Error(err))
		}
	}
}

// Finish cancels the run's context and forgets it.
func (e *Executor) Finish(run *Run) {
	run.cancel()

	e.mu.Lock()
	if current, ok := e.runs[run.key]; ok && current == run {
		delete(e.runs, run.key)
	}
	e.mu.Unlock()

	e.logger.Info("run finished", zap.String("run_id", run.ID), zap.String("project_id", run.ProjectID))
}

// Cancel cancels the active run of a project.
func (e *Executor) Cancel(projectID string) error {
	e.mu.Lock()
	run, ok := e.runs[projectID]
	e.mu.Unlock()

	if !ok || run == nil {
		return apperrors.NotFound("active run for project", projectID)
	}

	e.logger.Info("cancelling run", zap.String("run_id", run.ID), zap.String("project_id", projectID))
	run.Cancel()
	return nil
}

// Get returns the active run of a project.
func (e *Executor) Get(projectID string) (*Run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[projectID]
	return run, ok && run != nil
}

// List returns the active runs, oldest first.
func (e *Executor) List() []v1.RunInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]v1.RunInfo, 0, len(e.runs))
	for _, run := range e.runs {
		if run != nil {
			result = append(result, run.Info())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt < result[j].StartedAt
	})
	return result
}

// ActiveCount returns the number of active runs, including ones being prepared.
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runs)
}
