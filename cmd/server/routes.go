package main

import (
	"net/http"

	"github.com/dhrustimirsdar/customerreviewpost/internal/handlers"
	"github.com/dhrustimirsdar/customerreviewpost/internal/middleware"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine. The
// returned limiter must be closed on shutdown.
func registerRoutes(r *gin.Engine, svc *appServices) *middleware.RateLimiter {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.HandleMethodNotAllowed = true
	r.NoMethod(response.MethodNotAllowed)
	r.Use(middleware.CORS())

	// Rate limiter for intake and login
	limiter := middleware.NewRateLimiter(svc.cfg.Server.RateLimit, svc.cfg.Server.RateBurst)
	limited := limiter.Middleware()

	clientAuth := middleware.ClientAuth(middleware.ClientAuthConfig{
		APIKey:     svc.cfg.Auth.APIKey,
		AnonManage: svc.cfg.Auth.AnonManage,
	})

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics(svc.db))

	// Function-style endpoints used by the browser client
	functions := r.Group("/functions/v1", clientAuth)
	{
		functions.Any("/process-complaint", limited, handlers.Function(handlers.Verbs{
			http.MethodPost: svc.complaintHandler.Submit,
		}))
		functions.Any("/manage-complaints", handlers.Function(handlers.Verbs{
			http.MethodGet: svc.complaintHandler.List,
			http.MethodPut: svc.complaintHandler.Update,
		}))
		functions.Any("/complaint-messages", handlers.Function(handlers.Verbs{
			http.MethodGet:  svc.messageHandler.List,
			http.MethodPost: svc.messageHandler.Append,
		}))
	}

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", limited, svc.authHandler.Signup)
			auth.POST("/login", limited, svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Complaint routes (JWT or public API key)
		client := api.Group("", clientAuth)
		{
			client.POST("/complaints", limited, svc.complaintHandler.Submit)
			client.GET("/complaints", svc.complaintHandler.List)
			client.GET("/complaints/message-counts", svc.complaintHandler.MessageCounts)
			client.GET("/complaints/:id", svc.complaintHandler.Get)
			client.PUT("/complaints/:id", svc.complaintHandler.Update)
			client.GET("/complaints/:id/messages", svc.messageHandler.List)
			client.POST("/complaints/:id/messages", svc.messageHandler.Append)

			client.GET("/translate", svc.translationHandler.Translate)
			client.POST("/translate", svc.translationHandler.Translate)
			client.GET("/translate/languages", svc.translationHandler.Languages)

			client.GET("/events", svc.sseHandler.StreamEvents)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)
		}

		// Admin routes
		admin := protected.Group("")
		admin.Use(middleware.AdminRequired(), middleware.AuditLog(svc.systemLogs))
		{
			admin.GET("/dashboard/stats", svc.dashboardHandler.GetStats)

			admin.GET("/llm-configs", svc.llmConfigHandler.List)
			admin.GET("/llm-configs/active", svc.llmConfigHandler.GetActive)
			admin.GET("/llm-configs/:id", svc.llmConfigHandler.GetByID)
			admin.POST("/llm-configs", svc.llmConfigHandler.Create)
			admin.PUT("/llm-configs/:id", svc.llmConfigHandler.Update)
			admin.DELETE("/llm-configs/:id", svc.llmConfigHandler.Delete)

			admin.GET("/system-logs", svc.systemLogHandler.List)
			admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
			admin.POST("/system-logs/cleanup", svc.systemLogHandler.Cleanup)

			admin.GET("/users", svc.userHandler.List)
			admin.PUT("/users/:id", svc.userHandler.Update)
			admin.DELETE("/users/:id", svc.userHandler.Delete)
		}
	}

	return limiter
}
