package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ledger-ner/cmd"
	"ledger-ner/internal/api"
	"ledger-ner/internal/core"
	"ledger-ner/internal/database"
	"ledger-ner/internal/lexicon"
	"ledger-ner/internal/messaging"
	"ledger-ner/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// Config for the single process deployment: sqlite, local storage and an in
// memory queue, with the api and the worker in one binary.
type Config struct {
	Root        string `env:"ROOT" envDefault:"./ledger-ner"`
	Port        int    `env:"PORT" envDefault:"3001"`
	LexiconPath string `env:"LEXICON_PATH"`
	MaxTagBatch int    `env:"MAX_TAG_BATCH" envDefault:"256"`
}

const modelBucket = "models"

func createServer(db *gorm.DB, storage storage.Provider, queue messaging.Publisher, catalog *lexicon.Catalog, port, maxTagBatch int) *http.Server {
	r := cmd.NewRouter()

	apiHandler := api.NewBackendService(db, storage, queue, catalog, modelBucket, maxTagBatch)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port)

	db, err := database.Open(filepath.Join(cfg.Root, "db", "ledger-ner.db"))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	storage, err := storage.NewLocalProvider(filepath.Join(cfg.Root, "storage"))
	if err != nil {
		log.Fatalf("Failed to create storage provider: %v", err)
	}
	if err := storage.CreateBucket(context.Background(), modelBucket); err != nil {
		log.Fatalf("Failed to create model bucket: %v", err)
	}

	catalog := lexicon.Default()
	if cfg.LexiconPath != "" {
		if catalog, err = lexicon.Load(cfg.LexiconPath); err != nil {
			log.Fatalf("Failed to load lexicon: %v", err)
		}
	}

	queue := messaging.NewInMemoryQueue()
	if err := cmd.RequeueRuns(context.Background(), db, queue); err != nil {
		log.Fatalf("Failed to requeue unfinished runs: %v", err)
	}

	worker := core.NewTaskProcessor(db, storage, queue, queue, catalog, modelBucket)

	server := createServer(db, storage, queue, catalog, cfg.Port, cfg.MaxTagBatch)

	slog.Info("starting worker")
	worker.Start()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	<-stopped
	slog.Info("server stopped")
}
