// Package server assembles services, handlers and middleware into the HTTP
// application.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"finledger/internal/config"
	"finledger/internal/handlers"
	"finledger/internal/jobs"
	"finledger/internal/metrics"
	"finledger/internal/middleware"
	"finledger/internal/services"
	"finledger/internal/validator"

	_ "finledger/internal/docs" // swagger docs
)

// Server holds the wired application.
type Server struct {
	Router     *gin.Engine
	Reconciler *jobs.Reconciler
}

// New wires every service and handler on top of db.
func New(db *gorm.DB, cfg *config.Config) *Server {
	validator.Register()

	// Services
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db, cfg.DefaultCurrency)
	transactionService := services.NewTransactionService(db, accountService)
	investmentService := services.NewInvestmentService(db, accountService, transactionService)
	financingService := services.NewFinancingService(db, accountService, transactionService)
	auditService := services.NewAuditService(db)

	reconciler := jobs.NewReconciler(accountService, financingService)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	accountHandler := handlers.NewAccountHandler(accountService, auditService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, auditService)
	investmentHandler := handlers.NewInvestmentHandler(investmentService, auditService)
	financingHandler := handlers.NewFinancingHandler(financingService, auditService)
	adminHandler := handlers.NewAdminHandler(reconciler)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(metrics.Middleware())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Operator routes
	admin := v1.Group("/admin")
	admin.Use(middleware.OperatorAuthMiddleware(cfg.OperatorAPIKey))
	admin.POST("/reconcile", adminHandler.RunReconciliation)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetUserAccounts)
	accounts.GET("/:id", accountHandler.GetAccountByID)
	accounts.PUT("/:id", accountHandler.UpdateAccount)
	accounts.GET("/:id/balance-check", accountHandler.CheckBalance)
	accounts.GET("/:id/transactions", transactionHandler.GetAccountTransactions)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	investments := protected.Group("/investments")
	investments.POST("/operations", investmentHandler.RecordOperation)
	investments.GET("/operations", investmentHandler.ListOperations)
	investments.GET("/operations/:id", investmentHandler.GetOperation)
	investments.DELETE("/operations/:id", investmentHandler.DeleteOperation)
	investments.GET("/positions", investmentHandler.ListPositions)
	investments.GET("/positions/:asset", investmentHandler.GetPosition)
	investments.POST("/positions/:asset/rebuild", investmentHandler.RebuildPosition)
	investments.GET("/positions/:asset/value", investmentHandler.GetMarketValue)

	financings := protected.Group("/financings")
	financings.POST("", financingHandler.CreateFinancing)
	financings.GET("", financingHandler.ListFinancings)
	financings.POST("/simulate", financingHandler.SimulateSchedule)
	financings.GET("/:id", financingHandler.GetFinancing)
	financings.GET("/:id/schedule", financingHandler.GetSchedule)
	financings.GET("/:id/reconciliation", financingHandler.Reconcile)
	financings.POST("/:id/payments", financingHandler.RegisterPayment)
	financings.GET("/:id/payments", financingHandler.GetPayments)
	financings.DELETE("/:id/payments/:payment_id", financingHandler.DeletePayment)

	return &Server{Router: router, Reconciler: reconciler}
}
