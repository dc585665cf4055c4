package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateRunStatus(ctx context.Context, txn *gorm.DB, runId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	switch status {
	case JobRunning:
		updates["start_time"] = time.Now().UTC()
	case JobCompleted, JobFailed:
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&TrainingRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating run status", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

// StartRun marks a run RUNNING and clears whatever an earlier attempt left
// behind, so a requeued run starts again from chunk 1.
func StartRun(ctx context.Context, db *gorm.DB, runId uuid.UUID) error {
	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Where("run_id = ?", runId).Delete(&Evaluation{}).Error; err != nil {
			slog.Error("error clearing run evaluations", "run_id", runId, "error", err)
			return fmt.Errorf("error clearing evaluations: %w", err)
		}

		updates := map[string]any{
			"status":              JobRunning,
			"start_time":          time.Now().UTC(),
			"completion_time":     nil,
			"accumulated_samples": 0,
			"chunks_processed":    0,
			"total_features":      0,
			"artifact_key":        nil,
		}
		if err := txn.Model(&TrainingRun{Id: runId}).Updates(updates).Error; err != nil {
			slog.Error("error starting run", "run_id", runId, "error", err)
			return fmt.Errorf("error updating run status: %w", err)
		}
		return nil
	})
}

func UpdateRunProgress(ctx context.Context, txn *gorm.DB, runId uuid.UUID, accumulated, chunks, features int) error {
	updates := map[string]any{
		"accumulated_samples": accumulated,
		"chunks_processed":    chunks,
		"total_features":      features,
	}
	if err := txn.WithContext(ctx).Model(&TrainingRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating run progress", "run_id", runId, "error", err)
		return err
	}
	return nil
}

func CompleteRun(ctx context.Context, txn *gorm.DB, runId uuid.UUID, artifactKey string) error {
	updates := map[string]any{
		"status":          JobCompleted,
		"completion_time": time.Now().UTC(),
		"artifact_key":    artifactKey,
	}
	if err := txn.WithContext(ctx).Model(&TrainingRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error completing run", "run_id", runId, "error", err)
		return err
	}
	return nil
}

// SaveEvaluation stores an evaluation row; mismatches is encoded as JSON.
func SaveEvaluation(ctx context.Context, txn *gorm.DB, eval Evaluation, mismatches any) error {
	data, err := json.Marshal(mismatches)
	if err != nil {
		return fmt.Errorf("error encoding mismatches: %w", err)
	}
	eval.Mismatches = data
	if eval.Timestamp.IsZero() {
		eval.Timestamp = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Create(&eval).Error; err != nil {
		slog.Error("error saving evaluation", "run_id", eval.RunId, "chunk", eval.Chunk, "error", err)
		return err
	}
	return nil
}

func SaveRunError(ctx context.Context, txn *gorm.DB, runId uuid.UUID, errorMessage string) {
	runError := RunError{
		RunId:     runId,
		ErrorId:   uuid.New(),
		Error:     errorMessage,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&runError).Error; err != nil {
		slog.Error("error saving run error", "run_id", runId, "error", err)
	}
}
