package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"ledger-ner/internal/database"
	"ledger-ner/internal/messaging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	if err := godotenv.Load(configPath); err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func NewRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	return r
}

// RequeueRuns publishes a train task for every run that never finished, e.g.
// because the process was stopped mid-run. Training restarts from scratch;
// the session is deterministic for a given seed so the result is unchanged.
func RequeueRuns(ctx context.Context, db *gorm.DB, publisher messaging.Publisher) error {
	var runs []database.TrainingRun
	if err := db.WithContext(ctx).Where("status IN ?", []string{database.JobQueued, database.JobRunning}).Order("creation_time ASC").Find(&runs).Error; err != nil {
		return fmt.Errorf("error fetching unfinished runs: %w", err)
	}

	for _, run := range runs {
		if err := publisher.PublishTrainTask(ctx, messaging.TrainTaskPayload{RunId: run.Id}); err != nil {
			return fmt.Errorf("error requeueing run %s: %w", run.Id, err)
		}
		slog.Info("requeued training run", "run_id", run.Id, "status", run.Status)
	}
	return nil
}
