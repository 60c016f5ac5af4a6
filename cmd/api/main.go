package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cuadra/internal/cache"
	"cuadra/internal/calendar"
	"cuadra/internal/config"
	"cuadra/internal/database"
	"cuadra/internal/events"
	"cuadra/internal/handlers"
	"cuadra/internal/logger"
	"cuadra/internal/middleware"
	"cuadra/internal/services"
	"cuadra/internal/validator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "cuadra/internal/docs" // Import swagger docs
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 15 * time.Second
)

// @title           Cuadra API
// @version         1.0
// @description     Cuadra tracks the shared obligations of a group month by month and reconciles them against the payments its members record.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Invalidation broadcast between replicas
	var publisher events.Publisher = events.NopPublisher{}
	var broker *events.Client
	if appConfig.AMQPURL != "" {
		broker, err = events.NewClient(appConfig.AMQPURL, appConfig.AMQPExchange)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		defer broker.Close()
		publisher = broker
	} else {
		log.Warn("AMQP_URL not set, invalidations stay local to this replica")
	}

	db := dbManager.DB()
	sync := cache.NewSync(db, appConfig.CacheSize, appConfig.CacheTTL, publisher)
	go sync.RunJanitor(ctx, janitorInterval)
	if broker != nil {
		go func() {
			if err := broker.ConsumeInvalidations(ctx, sync.HandleInvalidation); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("Invalidation consumer stopped", "error", err)
			}
		}()
	}

	clock := calendar.SystemClock{Location: appConfig.Location()}

	// Initialize services
	auditService := services.NewAuditService(db)
	userService := services.NewUserService(db)
	groupService := services.NewGroupService(db, sync, appConfig.InvitationTTL)
	obligationService := services.NewObligationService(db, sync)
	paymentService := services.NewPaymentService(db, sync, clock)
	financeService := services.NewFinanceService(db, sync, clock)
	syncService := services.NewSyncService(db, sync)

	// Initialize handlers
	profileHandler := handlers.NewProfileHandler(userService, auditService)
	groupHandler := handlers.NewGroupHandler(groupService, auditService)
	obligationHandler := handlers.NewObligationHandler(obligationService, auditService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, auditService)
	financeHandler := handlers.NewFinanceHandler(financeService)
	syncHandler := handlers.NewSyncHandler(syncService, auditService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     appConfig.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "If-None-Match", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"ETag", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger documentation
	if !appConfig.IsProduction() {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Internal routes for trusted services
	internal := v1.Group("/internal")
	internal.Use(middleware.ServiceKeyMiddleware(appConfig.ServiceAPIKey))
	internal.POST("/groups/:group_id/invalidate", syncHandler.InternalInvalidate)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(appConfig.JWTSecret, appConfig.JWTIssuer))
	protected.Use(middleware.UserSync(userService))

	// User profile
	protected.GET("/profile", profileHandler.GetProfile)
	protected.PUT("/profile", profileHandler.UpdateProfile)

	// Group routes
	groups := protected.Group("/groups")
	groups.POST("", groupHandler.CreateGroup)
	groups.GET("", groupHandler.ListGroups)
	groups.GET("/:group_id", groupHandler.GetGroup)
	groups.PUT("/:group_id", groupHandler.UpdateGroup)
	groups.DELETE("/:group_id", groupHandler.DeleteGroup)
	groups.POST("/:group_id/leave", groupHandler.Leave)
	groups.GET("/:group_id/activity", groupHandler.ListActivity)

	// Membership routes
	groups.GET("/:group_id/members", groupHandler.ListMembers)
	groups.POST("/:group_id/invitations", groupHandler.Invite)
	groups.DELETE("/:group_id/members/:user_id", groupHandler.RemoveMember)
	groups.POST("/:group_id/members/:user_id/deactivate", groupHandler.DeactivateMember)
	groups.POST("/:group_id/members/:user_id/reactivate", groupHandler.ReactivateMember)
	groups.PUT("/:group_id/members/:user_id/role", groupHandler.ChangeRole)

	// Invitation routes
	invitations := protected.Group("/invitations")
	invitations.GET("", groupHandler.ListInvitations)
	invitations.POST("/accept", groupHandler.AcceptInvitationToken)
	invitations.POST("/:group_id/accept", groupHandler.AcceptInvitation)
	invitations.POST("/:group_id/reject", groupHandler.RejectInvitation)

	// Obligation routes
	groups.POST("/:group_id/obligations", obligationHandler.CreateObligation)
	groups.GET("/:group_id/obligations/recurring", obligationHandler.ListRecurring)
	groups.GET("/:group_id/obligations/one-off", obligationHandler.ListOneOffs)
	obligations := protected.Group("/obligations")
	obligations.GET("/recurring/:id", obligationHandler.GetRecurring)
	obligations.PUT("/recurring/:id", obligationHandler.UpdateRecurring)
	obligations.DELETE("/recurring/:id", obligationHandler.DeleteRecurring)
	obligations.GET("/one-off/:id", obligationHandler.GetOneOff)
	obligations.PUT("/one-off/:id", obligationHandler.UpdateOneOff)
	obligations.DELETE("/one-off/:id", obligationHandler.DeleteOneOff)

	// Payment routes
	payments := protected.Group("/payments")
	payments.POST("", paymentHandler.RecordPayment)
	payments.GET("", paymentHandler.ListPayments)
	payments.GET("/:id", paymentHandler.GetPayment)
	payments.PUT("/:id", paymentHandler.UpdatePayment)
	payments.DELETE("/:id", paymentHandler.DeletePayment)

	// Computed views
	month := groups.Group("/:group_id/months/:year/:month")
	month.GET("", financeHandler.MonthView)
	month.GET("/transactions", financeHandler.Transactions)
	month.GET("/summary", financeHandler.Summary)
	month.GET("/categories", financeHandler.Categories)
	month.GET("/savings", financeHandler.Savings)
	month.GET("/version", syncHandler.CurrentVersion)
	groups.GET("/:group_id/summary", financeHandler.GroupSummary)
	groups.GET("/:group_id/goals/:id/progress", financeHandler.GoalProgress)

	// Sync routes
	protected.POST("/sync/invalidate", syncHandler.Invalidate)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Cuadra backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
