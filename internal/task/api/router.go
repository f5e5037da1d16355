package api

import (
	"github.com/gin-gonic/gin"

	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/task/service"
)

// SetupRoutes configures the board API routes
func SetupRoutes(router *gin.RouterGroup, svc *service.Service, log *logger.Logger) {
	handler := NewHandler(svc, log)

	projects := router.Group("/projects")
	{
		projects.GET("", handler.ListProjects)
		projects.POST("", handler.CreateProject)
		projects.GET("/:id", handler.GetProject)
		projects.PATCH("/:id", handler.UpdateProject)
		projects.DELETE("/:id", handler.DeleteProject)

		// Project sub-resources
		projects.POST("/:id/tasks", handler.CreateTask)
		projects.PATCH("/:id/tasks/:taskId", handler.UpdateTask)
		projects.DELETE("/:id/tasks/:taskId", handler.DeleteTask)
		projects.GET("/:id/logs", handler.ListLogs)
		projects.POST("/:id/logs", handler.AppendLog)
		projects.GET("/:id/research-sheets", handler.ListResearchSheets)
	}
}
