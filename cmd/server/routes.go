package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/handlers"
	"github.com/huangang/studyhub/internal/metrics"
	"github.com/huangang/studyhub/internal/middleware"
	"github.com/huangang/studyhub/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine. The returned func
// stops the rate limiter sweepers.
func registerRoutes(r *gin.Engine, svc *appServices) (stop func()) {
	// Middleware
	r.Use(middleware.RequestID(), logger.GinLogger("/health", "/metrics"), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.AllowOrigins))
	r.Use(middleware.Metrics(metrics.Default()))
	r.Use(middleware.AuditLog())

	// Per-IP limits for credential endpoints and uploads
	authLimiter := middleware.NewRateLimiter(svc.cfg.Server.RateLimit, svc.cfg.Server.RateBurst)
	uploadLimiter := middleware.NewRateLimiter(svc.cfg.Server.RateLimit, svc.cfg.Server.RateBurst)
	stop = func() {
		authLimiter.Stop()
		uploadLimiter.Stop()
	}
	limit := func(rl *middleware.RateLimiter) func(gin.HandlerFunc) []gin.HandlerFunc {
		return func(h gin.HandlerFunc) []gin.HandlerFunc {
			if svc.cfg.Server.RateLimit <= 0 {
				return []gin.HandlerFunc{h}
			}
			return []gin.HandlerFunc{rl.Middleware(), h}
		}
	}
	limited, limitedUpload := limit(authLimiter), limit(uploadLimiter)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics(metrics.Registry()))

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", limited(svc.authHandler.Signup)...)
			auth.GET("/verify-email", svc.authHandler.VerifyEmail)
			auth.POST("/login", limited(svc.authHandler.Login)...)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.POST("/forgot-password", limited(svc.authHandler.ForgotPassword)...)
			auth.POST("/reset-password", limited(svc.authHandler.ResetPassword)...)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Public study browsing; membership flags appear when a token is sent
		public := api.Group("/studies", middleware.OptionalAuth(svc.db))
		{
			public.GET("", svc.studyHandler.ListPublic)
			public.GET("/:id", svc.studyHandler.Detail)
		}

		// SSE stream accepts the token as a query parameter
		api.GET("/events/notifications", middleware.AuthRequired(svc.db), svc.sseHandler.StreamNotifications)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.db))
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Profile
			protected.GET("/my/profile", svc.userHandler.Profile)
			protected.PUT("/my/profile", svc.userHandler.UpdateProfile)

			// My studies and applications
			my := protected.Group("/my/studies")
			{
				my.GET("", svc.studyHandler.ListMine)
				my.POST("", svc.studyHandler.Create)
				my.PUT("/:id", svc.studyHandler.Update)
				my.POST("/:id/apply", svc.studyHandler.Apply)
				my.GET("/:id/applications", svc.studyHandler.Applications)
				my.POST("/:id/applications/:appId/approve", svc.studyHandler.Approve)
				my.POST("/:id/applications/:appId/reject", svc.studyHandler.Reject)
			}

			// Study room
			room := protected.Group("/room/:studyId")
			{
				room.GET("", svc.studyHandler.Room)

				room.GET("/members", svc.memberHandler.List)
				room.POST("/members/leave", svc.memberHandler.Leave)
				room.POST("/members/:membershipId/promote", svc.memberHandler.Promote)
				room.POST("/members/:membershipId/demote", svc.memberHandler.Demote)
				room.POST("/members/:membershipId/remove", svc.memberHandler.Remove)

				room.GET("/board", svc.boardHandler.List)
				room.POST("/board", svc.boardHandler.Create)
				room.GET("/board/:postId", svc.boardHandler.Get)
				room.PUT("/board/:postId", svc.boardHandler.Update)
				room.POST("/board/:postId/delete", svc.boardHandler.Delete)
				room.POST("/board/:postId/comments", svc.boardHandler.AddComment)
				room.PUT("/board/:postId/comments/:commentId", svc.boardHandler.UpdateComment)
				room.POST("/board/:postId/comments/:commentId/delete", svc.boardHandler.DeleteComment)

				room.GET("/sessions", svc.sessionHandler.List)
				room.POST("/sessions", svc.sessionHandler.Create)
				room.POST("/sessions/:sessionId/checkin", svc.sessionHandler.CheckIn)
				room.GET("/sessions/:sessionId/attendance", svc.sessionHandler.Board)
				room.GET("/sessions/:sessionId/attendance/logs", svc.sessionHandler.Logs)
				room.PUT("/sessions/:sessionId/attendance/:userId", svc.sessionHandler.UpdateAttendance)
				room.POST("/sessions/:sessionId/attendance/:userId/update", svc.sessionHandler.RecordAttendance)

				room.GET("/files", svc.fileHandler.List)
				room.POST("/files", limitedUpload(svc.fileHandler.Upload)...)
				room.GET("/files/:fileId/download", svc.fileHandler.Download)
				room.POST("/files/:fileId/delete", svc.fileHandler.Delete)
			}

			// Notifications
			protected.GET("/notifications", svc.notificationHandler.List)
			protected.GET("/notifications/unread-count", svc.notificationHandler.UnreadCount)
			protected.POST("/notifications/read-all", svc.notificationHandler.MarkAllRead)
			protected.POST("/notifications/:id/read", svc.notificationHandler.MarkRead)
		}

		// Admin only routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(svc.db), middleware.AdminRequired())
		{
			admin.GET("/dashboard", svc.userHandler.Dashboard)
			admin.GET("/users", svc.userHandler.List)
			admin.PUT("/users/:id/role", svc.userHandler.SetRole)
			admin.PUT("/users/:id/active", svc.userHandler.SetActive)
			admin.GET("/studies", svc.studyHandler.ListAll)
			admin.POST("/studies/:id/hide", svc.studyHandler.Hide)
			admin.POST("/studies/:id/show", svc.studyHandler.Show)
			admin.GET("/system-logs", svc.systemLogHandler.List)
			admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
			admin.POST("/system-logs/cleanup", svc.systemLogHandler.Cleanup)
		}
	}

	return stop
}
