package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KimpiegamesYT1/vissstick/internal/api"
	"github.com/KimpiegamesYT1/vissstick/internal/config"
	"github.com/KimpiegamesYT1/vissstick/internal/logger"
	"github.com/KimpiegamesYT1/vissstick/internal/monitor"
	"github.com/KimpiegamesYT1/vissstick/internal/mqtt"
	"github.com/KimpiegamesYT1/vissstick/internal/predictor"
	"github.com/KimpiegamesYT1/vissstick/internal/status"
	"github.com/KimpiegamesYT1/vissstick/internal/storage"
	"github.com/KimpiegamesYT1/vissstick/internal/telegram"
	"github.com/gin-gonic/gin"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	loc, err := cfg.Monitor.Location()
	if err != nil {
		logger.Fatal("Invalid time zone: %v", err)
	}
	clock := func() time.Time { return time.Now().In(loc) }

	// Initialize storage; configured parameters only seed an empty database
	store, err := storage.New(cfg.Storage.DBPath, cfg.Prediction.Parameters())
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	source := status.NewClient(cfg.Status.URL, cfg.Status.Timeout)
	pred := predictor.New(store, store, clock)

	// Initialize announcers
	var announcers monitor.Announcers
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase, loc)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		announcers = append(announcers, telegramClient)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if cfg.MQTT.Enabled {
		publisher, err := mqtt.NewPublisher(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID, loc)
		if err != nil {
			logger.Fatal("Failed to connect to MQTT broker: %v", err)
		}
		defer publisher.Close()
		announcers = append(announcers, publisher)
		logger.Info("MQTT publisher connected to %s (topic %s)", cfg.MQTT.Broker, cfg.MQTT.Topic)
	} else {
		logger.Debug("MQTT publishing disabled")
	}

	mon := monitor.New(source, store, store, pred, announcers, monitor.WithLocation(loc))

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	// Start analytics API
	var srv *http.Server
	if cfg.HTTP.Enabled {
		gin.SetMode(gin.ReleaseMode)
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.New(store, pred, mon, api.WithClock(clock)).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Starting HTTP server on %s", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed: %v", err)
				cancel()
			}
		}()
	}

	logger.Info("Starting presence monitor (status: %s, timezone: %s)", cfg.Status.URL, loc)
	mon.Run(ctx)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown failed: %v", err)
		}
	}
	logger.Info("Service stopped")
}
