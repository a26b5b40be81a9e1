package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/service"
)

// Config wires the handler to its services.
type Config struct {
	Users   service.UserService
	Tasks   service.TaskService
	Exports service.ExportService
	Tokens  *auth.TokenManager

	CookieSecure bool
	CORSOrigin   string
	Logger       *logrus.Logger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users   service.UserService
	tasks   service.TaskService
	exports service.ExportService
	tokens  *auth.TokenManager

	cookieSecure bool
	corsOrigin   string
	logger       *logrus.Logger
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Handler{
		users:        cfg.Users,
		tasks:        cfg.Tasks,
		exports:      cfg.Exports,
		tokens:       cfg.Tokens,
		cookieSecure: cfg.CookieSecure,
		corsOrigin:   cfg.CORSOrigin,
		logger:       cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware(h.corsOrigin))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to the Task Manager API")
	})

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		users := api.Group("/users")
		users.POST("/register", h.register)
		users.POST("/login", h.login)
		users.POST("/logout", h.logout)

		authed := users.Group("", h.requireAuth)
		authed.GET("/users", h.listUsers)
		authed.GET("/me", h.me)
		authed.PUT("/:id", h.updateUser)
		authed.DELETE("/:id", h.deleteUser)

		tasks := api.Group("/tasks", h.requireAuth)
		tasks.GET("", h.listTasks)
		tasks.GET("/my-tasks", h.listMyTasks)
		tasks.POST("", h.createTask)
		tasks.POST("/export", h.exportTasks)
		tasks.GET("/exports", h.listExports)
		tasks.GET("/:id", h.getTask)
		tasks.PUT("/:id", h.updateTask)
		tasks.DELETE("/:id", h.deleteTask)
	}
}

func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// writeError maps err to its status and a public message. Only 5xx are logged
// here; services already log the audit trail for denied or failed operations.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := apperrors.GetCode(err).HTTPStatus()
	if status >= http.StatusInternalServerError {
		entry := h.logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     status,
			"request_id": c.GetString(requestIDKey),
		})
		if caller, ok := callerFrom(c); ok {
			entry = entry.WithField("caller_id", caller.UserID)
		}
		entry.WithError(err).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperrors.PublicMessage(err)})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

func parseID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}
