package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/agent/registry"
	"github.com/agentboard/agentboard/internal/common/errors"
	"github.com/agentboard/agentboard/internal/common/logger"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

const healthTimeout = 3 * time.Second

// Checker probes the agent runtime, e.g. the docker daemon or the CLI binary.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// Handler contains HTTP handlers for the agent API
type Handler struct {
	registry *registry.Registry
	runtime  string
	checker  Checker
	logger   *logger.Logger
}

// NewHandler creates a new API handler. checker may be nil.
func NewHandler(reg *registry.Registry, runtime string, checker Checker, log *logger.Logger) *Handler {
	return &Handler{
		registry: reg,
		runtime:  runtime,
		checker:  checker,
		logger:   log.WithFields(zap.String("component", "agent-api")),
	}
}

// ListProfiles returns the profile of every mode
// GET /api/v1/agent/profiles
func (h *Handler) ListProfiles(c *gin.Context) {
	profiles := h.registry.List()

	resp := ProfilesListResponse{
		Profiles: make([]ProfileResponse, 0, len(profiles)),
		Total:    len(profiles),
	}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, profileToResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

// GetProfile returns the profile of one mode
// GET /api/v1/agent/profiles/:mode
func (h *Handler) GetProfile(c *gin.Context) {
	mode := v1.Mode(c.Param("mode"))
	p, err := h.registry.Get(mode)
	if err != nil {
		appErr := errors.NotFound("agent profile", string(mode))
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(p))
}

// RuntimeHealth probes the agent runtime
// GET /api/v1/agent/health
func (h *Handler) RuntimeHealth(c *gin.Context) {
	resp := RuntimeHealthResponse{
		Runtime:   h.runtime,
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.checker.Check(ctx); err != nil {
			h.logger.Warn("agent runtime unavailable", zap.String("runtime", h.runtime), zap.Error(err))
			resp.Status = "unavailable"
			resp.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// profileToResponse converts a registry profile to its response
func profileToResponse(p registry.Profile) ProfileResponse {
	return ProfileResponse{
		Mode:           string(p.Mode),
		Tools:          p.Tools,
		MaxTurns:       p.MaxTurns,
		Model:          p.Model,
		PermissionMode: p.PermissionMode,
	}
}
