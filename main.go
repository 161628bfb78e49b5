package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kalm/internal/config"
	"kalm/internal/logging"
	"kalm/internal/server"
	"kalm/internal/services"
	"kalm/pkg/rabbitmq"
	"kalm/pkg/redisstore"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// --- Database ---
	db, err := server.OpenDatabase(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	// --- RabbitMQ (optional) ---
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.EventsQueue}, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize RabbitMQ client")
		}
		defer mqClient.Close()
		events = mqClient

		// Audit trail: every domain event is written to the log.
		if err := mqClient.Consume(func(ev rabbitmq.Event) error {
			log.WithFields(logrus.Fields{
				"event":       ev.Name,
				"occurred_at": ev.OccurredAt,
				"data":        ev.Data,
			}).Info("domain event")
			return nil
		}); err != nil {
			log.WithError(err).Warn("Failed to start event consumer")
		}
	} else {
		log.Info("RABBITMQ_URL not set, domain events are disabled")
	}

	// --- Redis limiter storage (optional) ---
	opts := server.Options{Config: cfg, DB: db, Log: log, Events: events}
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := redisstore.New(ctx, cfg.RedisAddr, "kalm:limiter:")
		cancel()
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer store.Close()
		opts.LimiterStorage = store
	}

	srv := server.New(opts)

	if cfg.AdminEmail != "" {
		if err := srv.Auth.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.WithError(err).Fatal("Failed to bootstrap admin account")
		}
	}

	// --- Start HTTP Server ---
	log.WithField("port", cfg.AppPort).Info("Starting server")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.App.Listen(cfg.AppPort); err != nil {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-quit
	log.Info("Shutting down server...")

	if err := srv.App.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Error during Fiber shutdown")
	}
	log.Info("Server gracefully stopped")
}
