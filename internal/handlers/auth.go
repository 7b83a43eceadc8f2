package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/dto"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
)

// PushDisconnector closes the push connections opened with a credential.
type PushDisconnector interface {
	DisconnectOwner(owner string) int
}

// AuthHandler handles login, register and logout.
type AuthHandler struct {
	sessions   auth.Sessions
	userSvc    *service.UserService
	push       PushDisconnector
	sessionTTL time.Duration
	log        *slog.Logger
}

// NewAuthHandler returns a new AuthHandler.
func NewAuthHandler(sessions auth.Sessions, userSvc *service.UserService, push PushDisconnector, sessionTTL time.Duration, log *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, userSvc: userSvc, push: push, sessionTTL: sessionTTL, log: log}
}

// Login godoc
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.AuthResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.userSvc.ValidateCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		writeError(c, h.log, err)
		return
	}
	token, err := h.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error("session create failed", "user_id", user.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	h.setCookie(c, token)
	c.JSON(http.StatusOK, dto.AuthResponse{OK: true, Token: token, User: dto.UserToResponse(user)})
}

// Register godoc
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRequest  true  "Credentials"
// @Success      201   {object}  dto.AuthResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.userSvc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		writeError(c, h.log, err)
		return
	}
	token, err := h.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error("session create failed", "user_id", user.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	h.setCookie(c, token)
	c.JSON(http.StatusCreated, dto.AuthResponse{OK: true, Token: token, User: dto.UserToResponse(user)})
}

// Logout godoc
// @Summary      Logout and close this credential's push connections
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request)
	if token != "" {
		_ = h.sessions.Delete(c.Request.Context(), token)
		if h.push != nil {
			if n := h.push.DisconnectOwner(token); n > 0 {
				h.log.Info("closed push connections on logout", "count", n)
			}
		}
	}
	c.SetCookie(auth.SessionCookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) setCookie(c *gin.Context, token string) {
	c.SetCookie(auth.SessionCookieName, token, int(h.sessionTTL.Seconds()), "/", "", false, true) // httpOnly
}
