package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/config"
	"github.com/yeremiapane/restaurant-booking/database"
	"github.com/yeremiapane/restaurant-booking/middlewares"
	"github.com/yeremiapane/restaurant-booking/router"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "restaurant-booking"

func main() {
	cfg := config.Load()
	utils.InitLoggerWithLevel(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		utils.ErrorLogger.Fatal("JWT_SECRET is required")
	}

	shutdownTelemetry := utils.SetupTelemetry(serviceName)

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate database: %v", err)
	}
	if cfg.SeedDemoData {
		if err := database.SeedDemoData(db); err != nil {
			utils.ErrorLogger.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	sinks := services.MultiPublisher{services.HubPublisher{}}
	var kafkaPublisher *services.KafkaPublisher
	if cfg.KafkaBroker != "" {
		kafkaPublisher = services.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		sinks = append(sinks, kafkaPublisher)
		utils.InfoLogger.Printf("Publishing events to kafka topic %s", cfg.KafkaTopic)
	}
	publishers := services.NewAsyncPublisher(sinks, cfg.EventBufferSize)

	svc := services.New(db, services.Config{
		SeatingDuration: cfg.SeatingDuration,
		AutoConfirm:     cfg.AutoConfirm,
		Publisher:       publishers,
	})

	var monitor *services.AlertMonitor
	if cfg.AlertScanInterval > 0 {
		monitor = services.NewAlertMonitor(svc.Ledger, publishers, cfg.AlertScanInterval)
		monitor.Start()
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.SetupRouter(db, svc, router.Options{
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    middlewares.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(r, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.ErrorLogger.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	utils.InfoLogger.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Printf("server shutdown error: %v", err)
	}
	if monitor != nil {
		monitor.Stop()
	}
	if err := publishers.Close(ctx); err != nil {
		utils.ErrorLogger.Printf("event queue drain error: %v", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			utils.ErrorLogger.Printf("kafka close error: %v", err)
		}
	}
	if err := shutdownTelemetry(ctx); err != nil {
		utils.ErrorLogger.Printf("telemetry shutdown error: %v", err)
	}
}
