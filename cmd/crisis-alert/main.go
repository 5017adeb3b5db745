package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/safemind/go-crisis-alerts/internal/api"
	"github.com/safemind/go-crisis-alerts/internal/channels"
	"github.com/safemind/go-crisis-alerts/internal/classify"
	"github.com/safemind/go-crisis-alerts/internal/config"
	"github.com/safemind/go-crisis-alerts/internal/followup"
	"github.com/safemind/go-crisis-alerts/internal/logging"
	"github.com/safemind/go-crisis-alerts/internal/models"
	"github.com/safemind/go-crisis-alerts/internal/notify"
	"github.com/safemind/go-crisis-alerts/internal/pipeline"
	"github.com/safemind/go-crisis-alerts/internal/registry"
	"github.com/safemind/go-crisis-alerts/internal/repository"
	"github.com/safemind/go-crisis-alerts/internal/sweeper"
	"github.com/safemind/go-crisis-alerts/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Realtime fan-out and the bounded event channels
	reg := registry.New()
	events := channels.NewBuffer(cfg.Realtime.ChannelCapacity)

	dispatcher := notify.NewDispatcher(
		&notify.LogSender{Channel: "email"},
		&notify.LogSender{Channel: "sms"},
		reg,
	)

	classifier := classify.NewKeywordClassifier()
	processor := pipeline.NewProcessor(db, classifier, reg, events, dispatcher)

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.BufferSize, func(ctx context.Context, r *models.Report) error {
		return processor.ProcessNewReport(ctx, r)
	})
	pool.Start(ctx)

	followups := followup.NewService(db, reg, events, dispatcher)

	sw := sweeper.New(db, reg, events, dispatcher, cfg.Sweep.Interval, cfg.Sweep.Grace)
	sw.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	handler := api.NewHandler(db, pool, followups, events, reg, cfg.Realtime.ConnSendBuffer)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	// Drop streaming clients and drain in-flight requests before stopping the
	// pool, so no handler submits to a stopped queue.
	reg.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	pool.Stop() // drains buffered reports before the context goes away
	cancel()
	sw.Stop()

	slog.Info("shutdown complete")
}
