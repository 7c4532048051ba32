package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/user-accounts/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, limiter RateLimiter) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit.Enabled, limiter, handler.logger),
	)

	users := router.Group("/users")
	{
		users.POST("", handler.Register)
		users.POST("/login", handler.Login)

		auth := users.Group("")
		auth.Use(authMiddleware(handler.accounts, handler.logger))
		{
			auth.POST("/logout", handler.Logout)
			auth.POST("/logoutAll", handler.LogoutAll)
			auth.GET("/me", handler.Me)
			auth.PATCH("/me", handler.UpdateMe)
			auth.DELETE("/me", handler.DeleteMe)
			auth.POST("/me/avatar", handler.UploadAvatar)
			auth.DELETE("/me/avatar", handler.DeleteAvatar)
		}

		users.GET("/:id", handler.GetByID)
		users.GET("/:id/avatar", handler.GetAvatar)

		if cfg.HTTP.ExposeUnsafeRoutes {
			users.GET("", handler.List)
			users.DELETE("/:id", handler.DeleteByID)
		}
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
