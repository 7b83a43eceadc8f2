package app

import (
	"log/slog"

	"taskboard/internal/auth"
	"taskboard/internal/cache"
	"taskboard/internal/config"
	"taskboard/internal/handlers"
	"taskboard/internal/realtime"
	"taskboard/internal/repo"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"

	_ "taskboard/docs"
)

// Deps are the stateful collaborators the routes are built on.
// Cache may be nil. Log defaults to slog.Default().
type Deps struct {
	Store    repo.Store
	Sessions auth.Sessions
	Cache    *cache.TaskCache
	Hub      *realtime.Hub
	Log      *slog.Logger
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, cfg config.Config, d Deps) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg, d.Hub))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(302, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	api := r.Group("/api/v1")

	userSvc := service.NewUserService(d.Store.Users, d.Cache)
	authHandler := handlers.NewAuthHandler(d.Sessions, userSvc, d.Hub, cfg.Auth.SessionTTL.Duration(), log)
	registerAuthRoutes(api, authHandler)

	workspaces := service.NewWorkspaceService(d.Store.Workspaces, cfg.Board.WorkspaceName)
	protected := api.Group("",
		auth.RequireSession(d.Sessions),
		handlers.RequireWorkspace(workspaces, log),
	)

	taskSvc := service.NewTaskService(d.Store.Tasks, d.Store.Users, workspaces, d.Cache, d.Hub, log)
	registerTaskRoutes(protected, handlers.NewTaskHandler(taskSvc, log), handlers.NewUserHandler(userSvc, log))

	ws := handlers.NewWSHandler(d.Hub, cfg.HTTP.Origins(), realtime.WSOptions{
		WriteTimeout: cfg.Realtime.WriteTimeout.Duration(),
		PingInterval: cfg.Realtime.PingInterval.Duration(),
	}, log)
	protected.GET("/ws", ws.Serve)
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "Task Board API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api/v1",
			"push":    "/api/v1/ws",
		})
	}
}

func healthHandler(cfg config.Config, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"ok":       true,
			"env":      cfg.App.Env,
			"store":    cfg.Store.Driver,
			"sessions": hub.Len(),
		})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.Data(200, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerTaskRoutes(api *gin.RouterGroup, h *handlers.TaskHandler, users *handlers.UserHandler) {
	api.POST("/tasks", h.Create)
	api.GET("/tasks", h.List)
	api.GET("/tasks/users", users.List)
	api.GET("/tasks/:id", h.GetByID)
	api.PUT("/tasks/:id", h.Update)
	api.PATCH("/tasks/:id", h.Update)
	api.DELETE("/tasks/:id", h.Delete)
	api.GET("/users", users.List)
}

func registerAuthRoutes(api *gin.RouterGroup, h *handlers.AuthHandler) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)
	api.POST("/auth/logout", h.Logout)
}
