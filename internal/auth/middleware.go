package auth

import (
	"context"
	"net/http"
	"strings"

	dom "taskboard/internal/domain"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the cookie set on login and register.
const SessionCookieName = "session_id"

const (
	contextKeyUserID = "user_id"
	contextKeyToken  = "session_token"
)

// UserIDFromContext returns the current user ID set by RequireSession. 0 if not set.
func UserIDFromContext(c *gin.Context) int64 {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return 0
	}
	id, ok := v.(int64)
	if !ok {
		return 0
	}
	return id
}

// TokenFromContext returns the credential RequireSession accepted.
func TokenFromContext(c *gin.Context) string {
	return c.GetString(contextKeyToken)
}

// Authenticate resolves a bearer credential to a user id.
func Authenticate(ctx context.Context, sessions Sessions, token string) (int64, error) {
	if token == "" {
		return 0, dom.ErrUnauthorized
	}
	userID, ok := sessions.GetUserID(ctx, token)
	if !ok {
		return 0, dom.ErrUnauthorized
	}
	return userID, nil
}

// TokenFromRequest extracts the credential from, in order: the Authorization
// bearer header, the x-auth-token header, the session cookie, and the token
// query parameter (browsers cannot set headers on WebSocket requests).
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if t := r.Header.Get("x-auth-token"); t != "" {
		return t
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// RequireSession returns a middleware that checks for a valid credential
// and sets the current user ID in context. If missing or invalid, responds with 401.
func RequireSession(sessions Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		userID, err := Authenticate(c.Request.Context(), sessions, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.Set(contextKeyUserID, userID)
		c.Set(contextKeyToken, token)
		c.Next()
	}
}
