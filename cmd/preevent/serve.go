package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/handlers"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/metrics"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/middleware"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/pipeline"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/services"
)

const shutdownTimeout = 30 * time.Second

// runServe starts the HTTP control surface.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "enable debug logging")
	envFile := fs.String("config", "", "env file loaded before the environment")
	fs.Parse(args)

	cfg := mustLoadConfig(*envFile)
	log := newLogger(cfg, *verbose)

	log.Info("Starting pre-event extraction API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"source":      cfg.Pipeline.Source,
		"port":        cfg.Server.Port,
	})

	st, checker, cleanup := openStore(context.Background(), cfg, log)
	defer cleanup()

	registry := metrics.NewRegistry()
	p := pipeline.New(st, pipelineOptions(cfg), registry, log)
	extractionService := services.NewExtractionService(cfg.Pipeline.AOIPath, p, log)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health and metrics routes
	healthHandler := handlers.NewHealthHandler(checker, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(registry.Handler()))

	// Register API v1 routes
	extractionHandler := handlers.NewExtractionHandler(extractionService)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", healthHandler.Info)
		v1.GET("/aois", extractionHandler.ListAOIs)
		v1.POST("/extractions", extractionHandler.CreateExtraction)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
