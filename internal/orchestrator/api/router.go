package api

import (
	"github.com/gin-gonic/gin"

	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/orchestrator/executor"
	"github.com/agentboard/agentboard/internal/orchestrator/streaming"
)

// SetupRoutes configures the run API routes. executeMiddleware guards
// POST /execute only, typically with httpmw.RateLimit.
func SetupRoutes(router *gin.RouterGroup, exec *executor.Executor, driver Driver, hub *streaming.Hub, log *logger.Logger, executeMiddleware ...gin.HandlerFunc) {
	handler := NewHandler(exec, driver, log)

	router.POST("/execute", append(executeMiddleware, handler.Execute)...)
	router.POST("/projects/:id/cancel", handler.CancelRun)
	router.GET("/runs", handler.ListRuns)

	streaming.SetupWebSocketRoutes(router, streaming.NewWSHandler(hub, log))
}
