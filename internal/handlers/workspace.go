package handlers

import (
	"log/slog"

	"taskboard/internal/auth"
	dom "taskboard/internal/domain"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
)

// RequireWorkspace enrolls the authenticated user into the shared workspace
// and carries it on the request context for the task service.
func RequireWorkspace(workspaces *service.WorkspaceService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := workspaces.Enroll(c.Request.Context(), auth.UserIDFromContext(c))
		if err != nil {
			writeError(c, log, err)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(dom.ContextWithWorkspace(c.Request.Context(), ws))
		c.Next()
	}
}
