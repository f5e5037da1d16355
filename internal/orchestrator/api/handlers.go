// Package api exposes runs over HTTP: a run streams as Server-Sent Events on
// the request that started it.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/common/errors"
	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/orchestrator"
	"github.com/agentboard/agentboard/internal/orchestrator/executor"
	"github.com/agentboard/agentboard/internal/orchestrator/streaming"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// Driver executes a prepared run. *orchestrator.Orchestrator implements it.
type Driver interface {
	Run(ctx context.Context, run *executor.Run, sink orchestrator.Sink) orchestrator.Result
}

// Handler contains HTTP handlers for the run API
type Handler struct {
	executor *executor.Executor
	driver   Driver
	logger   *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(exec *executor.Executor, driver Driver, log *logger.Logger) *Handler {
	return &Handler{
		executor: exec,
		driver:   driver,
		logger:   log.WithFields(zap.String("component", "orchestrator-api")),
	}
}

// Execute starts a run and streams its progress until the terminal event
// POST /api/v1/execute
func (h *Handler) Execute(c *gin.Context) {
	var req v1.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.ValidationError("request", err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	// The run is bound to the request: a client disconnect cancels it.
	run, err := h.executor.Start(c.Request.Context(), req)
	if err != nil {
		appErr := errors.From(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			h.logger.Error("failed to start run", zap.String("project_id", req.ProjectID), zap.Error(err))
		}
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	defer h.executor.Finish(run)

	sse, err := streaming.NewSSEWriter(c.Writer)
	if err != nil {
		appErr := errors.InternalError("streaming not supported", err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	defer sse.Close()

	log := h.logger.WithRunID(run.ID).WithProjectID(run.ProjectID)
	log.Debug("run stream opened")

	res := h.driver.Run(c.Request.Context(), run, sse)

	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.Int("completed", res.Completed),
		zap.Int("failed", res.Failed),
		zap.Bool("cancelled", res.Cancelled),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	log.Info("run finished", fields...)
}

// CancelRun cancels the active run of a project
// POST /api/v1/projects/:id/cancel
func (h *Handler) CancelRun(c *gin.Context) {
	projectID := c.Param("id")
	if err := h.executor.Cancel(projectID); err != nil {
		appErr := errors.From(err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	h.logger.Info("run cancel requested", zap.String("project_id", projectID))
	c.JSON(http.StatusAccepted, gin.H{
		"message":   "cancellation requested",
		"projectId": projectID,
	})
}

// ListRuns lists the active runs
// GET /api/v1/runs
func (h *Handler) ListRuns(c *gin.Context) {
	runs := h.executor.List()
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}
