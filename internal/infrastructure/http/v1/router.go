// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/domain/adjustment"
	"epitrack/internal/domain/delivery"
	"epitrack/internal/domain/devolution"
	"epitrack/internal/domain/ledger"
	"epitrack/internal/domain/note"
	"epitrack/internal/infrastructure/http/v1/handlers"
	"epitrack/internal/infrastructure/http/v1/middleware"
	"epitrack/internal/infrastructure/storage/postgres"
	"epitrack/pkg/logger"
)

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Logger    *logger.Logger

	LedgerService     *ledger.Service
	NoteService       *note.Service
	DeliveryService   *delivery.Service
	DevolutionService *devolution.Service
	AdjustmentService *adjustment.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	api := router.Group("/api/v1")
	api.Use(middleware.Actor())
	{
		noteHandler := handlers.NewNoteHandler(cfg.NoteService)
		notes := api.Group("/notes")
		{
			notes.POST("", noteHandler.Create)
			notes.GET("", noteHandler.List)
			notes.GET("/:id", noteHandler.Get)
			notes.PUT("/:id", noteHandler.Update)
			notes.POST("/:id/conclude", noteHandler.Conclude)
			notes.POST("/:id/cancel", noteHandler.Cancel)
		}

		deliveryHandler := handlers.NewDeliveryHandler(cfg.DeliveryService)
		devolutionHandler := handlers.NewDevolutionHandler(cfg.DevolutionService)
		deliveries := api.Group("/deliveries")
		{
			deliveries.POST("", deliveryHandler.Create)
			deliveries.GET("", deliveryHandler.List)
			deliveries.GET("/:id", deliveryHandler.Get)
			deliveries.POST("/:id/sign", deliveryHandler.Sign)
			deliveries.POST("/:id/cancel", deliveryHandler.Cancel)
			deliveries.GET("/:id/summary", deliveryHandler.Summary)

			deliveries.POST("/:id/returns", devolutionHandler.Process)
			deliveries.POST("/:id/returns/batch", devolutionHandler.ProcessBatch)
			deliveries.POST("/:id/returns/cancel", devolutionHandler.CancelReturn)
		}

		stockHandler := handlers.NewStockHandler(cfg.LedgerService, cfg.TxManager)
		stock := api.Group("/stock")
		{
			stock.GET("/balances", stockHandler.Balances)
			stock.GET("/entries", stockHandler.Entries)
			stock.POST("/entries/:id/reverse", stockHandler.Reverse)
		}

		adjustmentHandler := handlers.NewAdjustmentHandler(cfg.AdjustmentService)
		adjustments := api.Group("/adjustments")
		{
			adjustments.POST("", adjustmentHandler.Adjust)
			adjustments.POST("/reconcile", adjustmentHandler.Reconcile)
		}
	}

	return router
}
