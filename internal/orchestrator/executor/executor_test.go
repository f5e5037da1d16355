package executor

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentboard/agentboard/internal/common/errors"
	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/task/models"
	"github.com/agentboard/agentboard/internal/task/repository"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

func newTestExecutor(t *testing.T, max int) (*Executor, *repository.MemoryRepository, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := NewWorkspace(root)
	require.NoError(t, err)
	repo := repository.NewMemoryRepository()
	return NewExecutor(repo, ws, logger.NewNop(), max), repo, root
}

func seedProject(t *testing.T, repo *repository.MemoryRepository, mode v1.Mode) *models.Project {
	t.Helper()
	ctx := context.Background()
	project := &models.Project{Name: "Demo App", Identifier: "demo", Mode: mode}
	require.NoError(t, repo.CreateProject(ctx, project))

	tasks := []*models.Task{
		{ProjectID: project.ID, Title: "low", Priority: v1.PriorityLow},
		{ProjectID: project.ID, Title: "shipped", Priority: v1.PriorityUrgent, Status: v1.TaskStatusDone, Output: "ok"},
		{ProjectID: project.ID, Title: "urgent", Priority: v1.PriorityUrgent, Status: v1.TaskStatusFailed, Output: "boom"},
	}
	for _, task := range tasks {
		require.NoError(t, repo.CreateTask(ctx, task))
	}
	return project
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return apperrors.GetHTTPStatus(err)
}

func TestStart_BuildsTaskListFromProject(t *testing.T) {
	exec, repo, root := newTestExecutor(t, 0)
	project := seedProject(t, repo, v1.ModeBuild)

	run, err := exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	require.NoError(t, err)
	defer exec.Finish(run)

	titles := make([]string, 0, len(run.Tasks))
	for _, task := range run.Tasks {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"urgent", "low"}, titles)
	assert.Equal(t, v1.ModeBuild, run.Mode)
	assert.Equal(t, "Demo App", run.ProjectName)
	assert.Equal(t, filepath.Join(root, "demo"), run.WorkDir)

	info, err := os.Stat(run.WorkDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStart_ResetsUnfinishedTasks(t *testing.T) {
	exec, repo, _ := newTestExecutor(t, 0)
	project := seedProject(t, repo, v1.ModeBuild)

	run, err := exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	require.NoError(t, err)
	defer exec.Finish(run)

	tasks, err := repo.ListTasksByProject(context.Background(), project.ID)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Title == "shipped" {
			assert.Equal(t, v1.TaskStatusDone, task.Status)
			assert.Equal(t, "ok", task.Output)
			continue
		}
		assert.Equal(t, v1.TaskStatusTodo, task.Status, task.Title)
		assert.Empty(t, task.Output, task.Title)
	}
}

func TestStart_SkipsRequestedTasksAlreadyDone(t *testing.T) {
	exec, repo, _ := newTestExecutor(t, 0)
	project := seedProject(t, repo, v1.ModeBuild)
	tasks, err := repo.ListTasksByProject(context.Background(), project.ID)
	require.NoError(t, err)

	req := v1.RunRequest{ProjectID: project.ID}
	for _, task := range tasks {
		req.Tasks = append(req.Tasks, v1.RunTask{ID: task.ID, Title: task.Title})
	}
	run, err := exec.Start(context.Background(), req)
	require.NoError(t, err)
	defer exec.Finish(run)

	require.Len(t, run.Tasks, 2)
	assert.Equal(t, "low", run.Tasks[0].Title, "request order is kept")
	assert.Equal(t, "urgent", run.Tasks[1].Title)
}

func TestStart_ResearchModeHasNoWorkspace(t *testing.T) {
	exec, repo, root := newTestExecutor(t, 0)
	project := seedProject(t, repo, v1.ModeResearch)

	run, err := exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	require.NoError(t, err)
	defer exec.Finish(run)

	assert.True(t, run.IsResearch())
	assert.Empty(t, run.WorkDir)
	_, err = os.Stat(filepath.Join(root, "demo"))
	assert.True(t, os.IsNotExist(err))
}

func TestStart_AdHocRun(t *testing.T) {
	exec, _, root := newTestExecutor(t, 0)

	run, err := exec.Start(context.Background(), v1.RunRequest{
		ProjectName: "Scratch Pad!",
		Tasks:       []v1.RunTask{{ID: "t-1", Title: "hello"}},
	})
	require.NoError(t, err)
	defer exec.Finish(run)

	assert.Equal(t, filepath.Join(root, "scratch-pad-"), run.WorkDir)
	assert.Empty(t, run.ProjectID)
	assert.Len(t, exec.List(), 1)
}

func TestStart_Rejections(t *testing.T) {
	exec, repo, _ := newTestExecutor(t, 0)
	project := seedProject(t, repo, v1.ModeBuild)
	ctx := context.Background()

	_, err := exec.Start(ctx, v1.RunRequest{})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = exec.Start(ctx, v1.RunRequest{ProjectID: project.ID, Mode: "deploy"})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = exec.Start(ctx, v1.RunRequest{ProjectID: "missing"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = exec.Start(ctx, v1.RunRequest{Tasks: []v1.RunTask{{ID: "t", Title: "no workspace"}}})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err), "build mode needs a name or identifier")

	require.NoError(t, repo.UpdateProjectStatus(ctx, project.ID, v1.ProjectStatusExecuting))
	_, err = exec.Start(ctx, v1.RunRequest{ProjectID: project.ID})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	assert.Zero(t, exec.ActiveCount(), "rejected runs release their slot")
}

func TestStart_WorkspaceFailureIsServerError(t *testing.T) {
	// A regular file where the workspace root should be makes MkdirAll fail.
	root := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))
	ws, err := NewWorkspace(root)
	require.NoError(t, err)
	repo := repository.NewMemoryRepository()
	exec := NewExecutor(repo, ws, logger.NewNop(), 0)
	project := seedProject(t, repo, v1.ModeBuild)

	_, err = exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	assert.Zero(t, exec.ActiveCount())
}

func TestStart_OneRunPerProject(t *testing.T) {
	exec, repo, _ := newTestExecutor(t, 0)
	project := seedProject(t, repo, v1.ModeResearch)

	run, err := exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	require.NoError(t, err)

	_, err = exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	exec.Finish(run)
	run, err = exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	require.NoError(t, err)
	exec.Finish(run)
}

func TestStart_ConcurrencyCap(t *testing.T) {
	exec, _, _ := newTestExecutor(t, 1)
	req := v1.RunRequest{Mode: v1.ModeResearch, Tasks: []v1.RunTask{{ID: "t", Title: "q"}}}

	run, err := exec.Start(context.Background(), req)
	require.NoError(t, err)

	_, err = exec.Start(context.Background(), req)
	assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))

	exec.Finish(run)
	assert.Zero(t, exec.ActiveCount())
}

func TestCancel(t *testing.T) {
	exec, repo, _ := newTestExecutor(t, 0)
	project := seedProject(t, repo, v1.ModeResearch)

	err := exec.Cancel(project.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	run, err := exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	require.NoError(t, err)
	defer exec.Finish(run)

	got, ok := exec.Get(project.ID)
	require.True(t, ok)
	assert.Same(t, run, got)

	require.NoError(t, exec.Cancel(project.ID))
	select {
	case <-run.Context().Done():
	default:
		t.Fatal("run context not cancelled")
	}
}

func TestParentContextCancelsRun(t *testing.T) {
	exec, _, _ := newTestExecutor(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	run, err := exec.Start(ctx, v1.RunRequest{Mode: v1.ModeResearch, Tasks: []v1.RunTask{{ID: "t", Title: "q"}}})
	require.NoError(t, err)
	defer exec.Finish(run)

	cancel()
	<-run.Context().Done()
}

func TestRunInfo(t *testing.T) {
	exec, repo, _ := newTestExecutor(t, 0)
	project := seedProject(t, repo, v1.ModeResearch)

	run, err := exec.Start(context.Background(), v1.RunRequest{ProjectID: project.ID})
	require.NoError(t, err)
	defer exec.Finish(run)

	infos := exec.List()
	require.Len(t, infos, 1)
	assert.Equal(t, run.ID, infos[0].RunID)
	assert.Equal(t, project.ID, infos[0].ProjectID)
	assert.Equal(t, v1.ModeResearch, infos[0].Mode)
	assert.Equal(t, 2, infos[0].TaskCount)
	assert.NotEmpty(t, infos[0].StartedAt)
}

func TestWorkspacePath(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "my-app", DirName("Whatever", "my-app"))
	assert.Equal(t, "my-cool-app", DirName("My Cool App", ""))

	_, err = ws.Path("", "")
	assert.ErrorIs(t, err, ErrInvalidWorkspace)
	_, err = ws.Path("", "..")
	assert.ErrorIs(t, err, ErrInvalidWorkspace)
	_, err = ws.Path("", "../escape")
	assert.ErrorIs(t, err, ErrInvalidWorkspace)

	path, err := ws.Path("x", "proj")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Root(), "proj"), path)
}
