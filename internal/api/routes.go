package api

import (
	"log"

	"github.com/darecoin/backend/internal/api/handlers"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	// uploaded proofs
	router.Static("/uploads", cfg.UploadDir)

	api := router.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck(db, rdb))
		api.GET("/config", handlers.GetConfig(cfg))

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db, cfg))
			auth.POST("/login", handlers.Login(db, rdb, cfg))
		}

		// provider callbacks are authenticated by signature, not JWT
		api.POST("/payment/webhook", handlers.PaymentWebhook(db, rdb, cfg))

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(db, cfg))
		{
			authed.GET("/auth/me", handlers.Me(db))
			authed.PUT("/auth/profile", handlers.UpdateProfile(db))
			authed.PUT("/auth/highlights", handlers.UpdateHighlights(db))

			authed.GET("/users", handlers.SearchUsers(db))
			authed.GET("/users/:handle", handlers.GetUserProfile(db))

			dares := authed.Group("/dares")
			{
				dares.GET("", handlers.ListDares(db))
				dares.POST("", handlers.CreateDare(db, rdb, cfg))
				dares.GET("/:id", handlers.GetDare(db))
				dares.POST("/:id/join", handlers.JoinDare(db, rdb))
				dares.POST("/:id/ignore", handlers.IgnoreDare(db))
				dares.POST("/:id/submit", handlers.SubmitDare(db, rdb, cfg))
				dares.POST("/:id/verify", handlers.VerifyDare(db, rdb))
				dares.GET("/:id/pending", handlers.PendingDare(db))
			}

			truths := authed.Group("/truths")
			{
				truths.GET("", handlers.ListTruths(db))
				truths.POST("", handlers.CreateTruth(db, rdb, cfg))
				truths.GET("/:id", handlers.GetTruth(db))
				truths.POST("/:id/join", handlers.JoinTruth(db, rdb))
				truths.POST("/:id/answer", handlers.AnswerTruth(db, rdb))
				truths.POST("/:id/verify", handlers.VerifyTruth(db, rdb))
				truths.GET("/:id/pending", handlers.PendingTruth(db))
			}

			wallet := authed.Group("/wallet")
			{
				wallet.GET("", handlers.GetWallet(db))
				wallet.POST("/topup", handlers.Topup(db, rdb, cfg))
				wallet.POST("/transfer", handlers.Transfer(db, rdb, cfg))
			}

			pay := authed.Group("/payment")
			{
				pay.POST("/create-order", handlers.CreateOrder(db, cfg))
				pay.POST("/verify-payment", handlers.VerifyPayment(db, rdb, cfg))
				pay.POST("/mock-payment", handlers.MockPayment(db, rdb, cfg))
			}

			notifications := authed.Group("/notifications")
			{
				notifications.GET("", handlers.ListNotifications(db))
				notifications.GET("/unread-count", handlers.UnreadCount(db))
				notifications.PUT("/read-all", handlers.MarkAllNotificationsRead(db))
				notifications.PUT("/:id/read", handlers.MarkNotificationRead(db))
				notifications.GET("/ws", handlers.NotificationsWebSocket())
			}

			adminGroup := authed.Group("/admin")
			adminGroup.Use(middleware.AdminOnly())
			{
				adminGroup.GET("/stats", handlers.GetAdminStats(db, rdb, cfg))
				adminGroup.GET("/analytics", handlers.GetAdminAnalytics(db))
				adminGroup.GET("/users", handlers.GetAdminUsers(db))
				adminGroup.PUT("/users/:id", handlers.UpdateAdminUser(db, rdb))
				adminGroup.GET("/dares", handlers.GetAdminDares(db))
				adminGroup.DELETE("/dares/:id", handlers.DeleteAdminDare(db, rdb))
				adminGroup.GET("/truths", handlers.GetAdminTruths(db))
				adminGroup.DELETE("/truths/:id", handlers.DeleteAdminTruth(db, rdb))
				adminGroup.GET("/transactions", handlers.GetAdminTransactions(db))
				adminGroup.GET("/payments", handlers.GetAdminPaymentOrders(db))
				adminGroup.GET("/audit", handlers.GetAdminAuditLogs(db))
				adminGroup.GET("/config", handlers.GetAdminRuntimeConfig(db))
				adminGroup.PUT("/config/:key", handlers.UpdateAdminRuntimeConfig(db, cfg))
			}
		}
	}
}
