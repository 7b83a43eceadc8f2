package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	dom "taskboard/internal/domain"

	"github.com/gin-gonic/gin"
)

// writeError maps the domain error taxonomy onto HTTP. Anything unexpected
// is logged in full and reported to the caller as an opaque 500.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var ve *dom.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, dom.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dom.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
	default:
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
