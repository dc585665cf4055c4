package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ledger-ner/cmd"
	"ledger-ner/internal/config"
	"ledger-ner/internal/core"
	"ledger-ner/internal/database"
	"ledger-ner/internal/messaging"
)

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL must be set")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	storage, err := cfg.StorageProvider(context.Background())
	if err != nil {
		log.Fatalf("Failed to create storage provider: %v", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		log.Fatalf("Failed to load lexicon: %v", err)
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to start RabbitMQ consumer: %v", err)
	}

	worker := core.NewTaskProcessor(db, storage, publisher, receiver, catalog, cfg.Storage.ModelBucketName)

	worker.Start()
	slog.Info("worker started, waiting for tasks")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutdown signal received, stopping worker")
	worker.Stop()
	slog.Info("worker stopped")
}
