package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"ledger-ner/internal/core/training"
	"ledger-ner/internal/database"
	"ledger-ner/internal/lexicon"
	"ledger-ner/internal/messaging"
	"ledger-ner/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskProcessor struct {
	db        *gorm.DB
	storage   storage.Provider
	publisher messaging.Publisher
	reciever  messaging.Reciever
	catalog   *lexicon.Catalog

	modelBucket string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTaskProcessor(db *gorm.DB, storage storage.Provider, publisher messaging.Publisher, reciever messaging.Reciever, catalog *lexicon.Catalog, modelBucket string) *TaskProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskProcessor{
		db:          db,
		storage:     storage,
		publisher:   publisher,
		reciever:    reciever,
		catalog:     catalog,
		modelBucket: modelBucket,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ModelArtifactKey is the object key of the exported model for a run.
func ModelArtifactKey(runId uuid.UUID) string {
	return runId.String() + "/model.json"
}

// Start launches the consumer loop and returns immediately. Stop waits for
// the loop to exit.
func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	proc.wg.Add(1)
	go proc.consume()
}

func (proc *TaskProcessor) consume() {
	defer proc.wg.Done()

	tasks := proc.reciever.Tasks()
	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				return
			}
			proc.ProcessTask(task)
		case <-proc.ctx.Done():
			return
		}
	}
}

// Stop cancels any in-flight training run between chunks, waits for the loop to
// return and closes the queue connections.
func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.cancel()
	proc.wg.Wait()

	proc.publisher.Close()
	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	var err error
	switch task.Type() {
	case messaging.TrainingQueue:
		var payload messaging.TrainTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling train task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processTrainTask(proc.ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func runConfig(run database.TrainingRun) training.Config {
	cfg := training.DefaultConfig()
	cfg.MaxSamples = run.MaxSamples
	cfg.ChunkSize = run.ChunkSize
	cfg.EvalSamples = run.EvalSamples
	cfg.Seed = run.Seed
	if run.Alpha > 0 {
		cfg.Alpha = run.Alpha
	}
	return cfg
}

func (proc *TaskProcessor) failRun(ctx context.Context, runId uuid.UUID, err error) error {
	// The run may have been cancelled; record the failure regardless.
	ctx = context.WithoutCancel(ctx)
	database.SaveRunError(ctx, proc.db, runId, err.Error())
	database.UpdateRunStatus(ctx, proc.db, runId, database.JobFailed) //nolint:errcheck
	return err
}

func (proc *TaskProcessor) processTrainTask(ctx context.Context, payload messaging.TrainTaskPayload) error {
	runId := payload.RunId
	slog.Info("processing train task", "run_id", runId)

	var run database.TrainingRun
	if err := proc.db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		slog.Error("error fetching training run", "run_id", runId, "error", err)
		return fmt.Errorf("error getting training run: %w", err)
	}

	if run.Status == database.JobCompleted {
		slog.Info("training run already completed, skipping", "run_id", runId)
		return nil
	}

	if err := database.StartRun(ctx, proc.db, runId); err != nil {
		return fmt.Errorf("error starting training run: %w", err)
	}

	session, err := training.NewSession(runConfig(run), proc.catalog)
	if err != nil {
		return proc.failRun(ctx, runId, fmt.Errorf("error creating training session: %w", err))
	}

	for !session.Done() {
		if err := ctx.Err(); err != nil {
			return proc.failRun(ctx, runId, fmt.Errorf("training run cancelled after %d samples: %w", session.AccumulatedSamples(), err))
		}

		result, err := session.Step(ctx)
		if err != nil {
			return proc.failRun(ctx, runId, fmt.Errorf("error processing chunk: %w", err))
		}

		if err := proc.recordChunk(ctx, runId, result); err != nil {
			return proc.failRun(ctx, runId, err)
		}
	}

	doc, err := session.Export(runId.String())
	if err != nil {
		return proc.failRun(ctx, runId, fmt.Errorf("error exporting model: %w", err))
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return proc.failRun(ctx, runId, fmt.Errorf("error encoding model: %w", err))
	}

	key := ModelArtifactKey(runId)
	if err := proc.storage.PutObject(ctx, proc.modelBucket, key, &buf); err != nil {
		slog.Error("error uploading model", "run_id", runId, "error", err)
		return proc.failRun(ctx, runId, fmt.Errorf("error uploading model: %w", err))
	}

	if err := database.CompleteRun(ctx, proc.db, runId, key); err != nil {
		return fmt.Errorf("error updating run status after training: %w", err)
	}

	slog.Info("training run completed", "run_id", runId, "samples", session.AccumulatedSamples(), "features", session.VocabularySize())

	return nil
}

func (proc *TaskProcessor) recordChunk(ctx context.Context, runId uuid.UUID, result training.ChunkResult) error {
	return proc.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := database.UpdateRunProgress(ctx, txn, runId, result.AccumulatedSamples, result.Chunk, result.VocabularySize); err != nil {
			return fmt.Errorf("error updating run progress: %w", err)
		}

		if result.Evaluation == nil {
			return nil
		}

		eval := result.Evaluation
		mismatches := eval.Mismatches
		if mismatches == nil {
			mismatches = []training.Mismatch{}
		}
		row := database.Evaluation{
			RunId:              runId,
			Chunk:              eval.Chunk,
			AccumulatedSamples: eval.AccumulatedSamples,
			Sentences:          eval.Sentences,
			Tokens:             eval.Tokens,
			Correct:            eval.Correct,
			Accuracy:           eval.Accuracy,
		}
		if err := database.SaveEvaluation(ctx, txn, row, mismatches); err != nil {
			return fmt.Errorf("error saving evaluation: %w", err)
		}
		return nil
	})
}
