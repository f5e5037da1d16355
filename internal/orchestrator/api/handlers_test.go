package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/events/bus"
	"github.com/agentboard/agentboard/internal/orchestrator"
	"github.com/agentboard/agentboard/internal/orchestrator/executor"
	"github.com/agentboard/agentboard/internal/orchestrator/streaming"
	"github.com/agentboard/agentboard/internal/task/models"
	"github.com/agentboard/agentboard/internal/task/repository"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// stubDriver emits one start/complete pair per task, or parks until the run
// is cancelled when block is set.
type stubDriver struct {
	block   bool
	started chan *executor.Run
}

func (d *stubDriver) Run(_ context.Context, run *executor.Run, sink orchestrator.Sink) orchestrator.Result {
	if d.started != nil {
		d.started <- run
	}
	if d.block {
		<-run.Context().Done()
		_ = sink.Emit(v1.ProgressEvent{Type: v1.EventDone, Content: "Execution cancelled."})
		return orchestrator.Result{Status: v1.ProjectStatusFailed, Cancelled: true}
	}
	for _, task := range run.Tasks {
		_ = sink.Emit(v1.ProgressEvent{Type: v1.EventTaskStart, TaskID: task.ID})
		_ = sink.Emit(v1.ProgressEvent{Type: v1.EventTaskComplete, TaskID: task.ID, Output: "ok"})
	}
	_ = sink.Emit(v1.ProgressEvent{Type: v1.EventDone, Content: "All tasks completed."})
	return orchestrator.Result{Status: v1.ProjectStatusCompleted, Completed: len(run.Tasks)}
}

type harness struct {
	repo     *repository.MemoryRepository
	exec     *executor.Executor
	eventBus *bus.MemoryEventBus
	hub      *streaming.Hub
	router   *gin.Engine
}

func newHarness(t *testing.T, driver Driver) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	ws, err := executor.NewWorkspace(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		repo:     repository.NewMemoryRepository(),
		eventBus: bus.NewMemoryEventBus(log),
	}
	t.Cleanup(h.eventBus.Close)
	h.exec = executor.NewExecutor(h.repo, ws, log, 2)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.hub = streaming.NewHub(h.eventBus, log)
	go h.hub.Run(ctx)

	h.router = gin.New()
	SetupRoutes(h.router.Group("/api/v1"), h.exec, driver, h.hub, log)
	return h
}

func (h *harness) project(t *testing.T, titles ...string) *models.Project {
	t.Helper()
	ctx := context.Background()
	project := &models.Project{Name: "Demo", Identifier: "demo", Mode: v1.ModeResearch}
	require.NoError(t, h.repo.CreateProject(ctx, project))
	for _, title := range titles {
		require.NoError(t, h.repo.CreateTask(ctx, &models.Task{ProjectID: project.ID, Title: title}))
	}
	return project
}

func post(router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeAll(t *testing.T, r io.Reader) []v1.ProgressEvent {
	t.Helper()
	dec := streaming.NewDecoder(r)
	var out []v1.ProgressEvent
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestExecute_StreamsRun(t *testing.T) {
	h := newHarness(t, &stubDriver{})
	project := h.project(t, "First", "Second")

	w := post(h.router, "/api/v1/execute", v1.RunRequest{ProjectID: project.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := decodeAll(t, w.Body)
	require.Len(t, events, 5)
	assert.Equal(t, v1.EventTaskStart, events[0].Type)
	assert.Equal(t, v1.EventDone, events[4].Type)
	assert.Equal(t, 0, h.exec.ActiveCount())
}

func TestExecute_Rejections(t *testing.T) {
	h := newHarness(t, &stubDriver{})

	w := post(h.router, "/api/v1/execute", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h.router, "/api/v1/execute", v1.RunRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h.router, "/api/v1/execute", v1.RunRequest{ProjectID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)

	w = post(h.router, "/api/v1/execute", v1.RunRequest{
		Tasks: []v1.RunTask{{ID: "t", Title: "x"}},
		Mode:  "deploy",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, h.exec.ActiveCount())
}

func TestExecute_ConflictAndCancel(t *testing.T) {
	driver := &stubDriver{block: true, started: make(chan *executor.Run, 1)}
	h := newHarness(t, driver)
	project := h.project(t, "Long")

	srv := httptest.NewServer(h.router)
	defer srv.Close()

	body, _ := json.Marshal(v1.RunRequest{ProjectID: project.ID})
	resp, err := http.Post(srv.URL+"/api/v1/execute", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-driver.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run never started")
	}

	w := post(h.router, "/api/v1/execute", v1.RunRequest{ProjectID: project.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rw := httptest.NewRecorder()
	h.router.ServeHTTP(rw, req)
	var runs struct {
		Runs  []v1.RunInfo `json:"runs"`
		Total int          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &runs))
	require.Equal(t, 1, runs.Total)
	assert.Equal(t, project.ID, runs.Runs[0].ProjectID)

	w = post(h.router, "/api/v1/projects/"+project.ID+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	events := decodeAll(t, bufio.NewReader(resp.Body))
	require.Len(t, events, 1)
	assert.Equal(t, v1.EventDone, events[0].Type)
	assert.Eventually(t, func() bool { return h.exec.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCancelRun_NoActiveRun(t *testing.T) {
	h := newHarness(t, &stubDriver{})

	w := post(h.router, "/api/v1/projects/nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectWebSocket_ForwardsBusEvents(t *testing.T) {
	h := newHarness(t, &stubDriver{})
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/projects/p-1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.hub.GetProjectSubscriberCount("p-1") == 1 }, 2*time.Second, 5*time.Millisecond)

	ev := bus.NewEvent(string(v1.EventTaskStart), bus.SourceOrchestrator, v1.ProgressEvent{Type: v1.EventTaskStart, TaskID: "t-1"})
	require.NoError(t, h.eventBus.Publish(context.Background(), bus.ProjectSubject("p-1"), ev))
	require.NoError(t, h.eventBus.Publish(context.Background(), bus.ProjectSubject("p-2"), bus.NewEvent("other", "test", nil)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got bus.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, string(v1.EventTaskStart), got.Type)
}
