package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/common/errors"
	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/task/service"
)

// Handler contains HTTP handlers for the board API
type Handler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log,
	}
}

// writeError renders err as an AppError, logging anything that is not a client error.
func (h *Handler) writeError(c *gin.Context, msg string, err error) {
	appErr := errors.From(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	}
	c.JSON(appErr.HTTPStatus, appErr)
}

func badRequest(c *gin.Context, err error) {
	appErr := errors.BadRequest(err.Error())
	c.JSON(appErr.HTTPStatus, appErr)
}

// Project endpoints

// ListProjects lists projects with their tasks
// GET /api/v1/projects
func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.service.ListProjects(c.Request.Context())
	if err != nil {
		h.writeError(c, "failed to list projects", err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// CreateProject creates a new project
// POST /api/v1/projects
func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.service.CreateProject(c.Request.Context(), &service.CreateProjectRequest{
		Name:        req.Name,
		Description: req.Description,
		Identifier:  req.Identifier,
		Mode:        req.Mode,
	})
	if err != nil {
		h.writeError(c, "failed to create project", err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// GetProject retrieves a project with its tasks
// GET /api/v1/projects/:id
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.service.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get project", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// UpdateProject applies a partial update to a project
// PATCH /api/v1/projects/:id
func (h *Handler) UpdateProject(c *gin.Context) {
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.service.UpdateProject(c.Request.Context(), c.Param("id"), &service.UpdateProjectRequest{
		Name:        req.Name,
		Description: req.Description,
		Identifier:  req.Identifier,
		Mode:        req.Mode,
		Status:      req.Status,
	})
	if err != nil {
		h.writeError(c, "failed to update project", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject deletes a project and everything it owns
// DELETE /api/v1/projects/:id
func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.service.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "failed to delete project", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Task endpoints

// CreateTask appends a task to a project
// POST /api/v1/projects/:id/tasks
func (h *Handler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.service.CreateTask(c.Request.Context(), &service.CreateTaskRequest{
		ProjectID:   c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		h.writeError(c, "failed to create task", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask applies a partial update to a task
// PATCH /api/v1/projects/:id/tasks/:taskId
func (h *Handler) UpdateTask(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.service.UpdateTask(c.Request.Context(), c.Param("id"), c.Param("taskId"), &service.UpdateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Output:      req.Output,
		Position:    req.Position,
	})
	if err != nil {
		h.writeError(c, "failed to update task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask deletes a task
// DELETE /api/v1/projects/:id/tasks/:taskId
func (h *Handler) DeleteTask(c *gin.Context) {
	if err := h.service.DeleteTask(c.Request.Context(), c.Param("id"), c.Param("taskId")); err != nil {
		h.writeError(c, "failed to delete task", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Log and research sheet endpoints

// ListLogs lists a project's execution log
// GET /api/v1/projects/:id/logs
func (h *Handler) ListLogs(c *gin.Context) {
	logs, err := h.service.ListLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to list logs", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// AppendLog writes a log row
// POST /api/v1/projects/:id/logs
func (h *Handler) AppendLog(c *gin.Context) {
	var req AppendLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.service.AppendLog(c.Request.Context(), &service.AppendLogRequest{
		ProjectID: c.Param("id"),
		TaskID:    req.TaskID,
		Type:      req.Type,
		Content:   req.Content,
	})
	if err != nil {
		h.writeError(c, "failed to append log", err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListResearchSheets lists a project's research sheets
// GET /api/v1/projects/:id/research-sheets
func (h *Handler) ListResearchSheets(c *gin.Context) {
	sheets, err := h.service.ListResearchSheets(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to list research sheets", err)
		return
	}
	c.JSON(http.StatusOK, sheets)
}
