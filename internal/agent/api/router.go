package api

import (
	"github.com/gin-gonic/gin"

	"github.com/agentboard/agentboard/internal/agent/registry"
	"github.com/agentboard/agentboard/internal/common/logger"
)

// SetupRoutes configures the agent API routes
// router should be the /api/v1 group
func SetupRoutes(router *gin.RouterGroup, reg *registry.Registry, runtime string, checker Checker, log *logger.Logger) {
	handler := NewHandler(reg, runtime, checker, log)

	agent := router.Group("/agent")
	{
		agent.GET("/profiles", handler.ListProfiles)
		agent.GET("/profiles/:mode", handler.GetProfile)
		agent.GET("/health", handler.RuntimeHealth)
	}
}
