package api

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"ledger-ner/internal/core"
	"ledger-ner/internal/database"
	"ledger-ner/pkg/api"
)

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func convertEvaluation(e database.Evaluation) api.Evaluation {
	mismatches := []api.Mismatch{}
	if len(e.Mismatches) > 0 {
		if err := json.Unmarshal(e.Mismatches, &mismatches); err != nil {
			slog.Error("error decoding evaluation mismatches", "run_id", e.RunId, "chunk", e.Chunk, "error", err)
		}
	}
	return api.Evaluation{
		Chunk:              e.Chunk,
		AccumulatedSamples: e.AccumulatedSamples,
		Sentences:          e.Sentences,
		Tokens:             e.Tokens,
		Correct:            e.Correct,
		Accuracy:           e.Accuracy,
		Mismatches:         mismatches,
		Timestamp:          e.Timestamp,
	}
}

func convertRun(r database.TrainingRun) api.Run {
	run := api.Run{
		Id:                 r.Id,
		Name:               r.Name,
		Status:             r.Status,
		MaxSamples:         r.MaxSamples,
		ChunkSize:          r.ChunkSize,
		EvalSamples:        r.EvalSamples,
		Seed:               r.Seed,
		Alpha:              r.Alpha,
		AccumulatedSamples: r.AccumulatedSamples,
		ChunksProcessed:    r.ChunksProcessed,
		TotalFeatures:      r.TotalFeatures,
		CreationTime:       r.CreationTime,
		StartTime:          nullTime(r.StartTime),
		CompletionTime:     nullTime(r.CompletionTime),
	}

	for _, e := range r.Evaluations {
		run.Evaluations = append(run.Evaluations, convertEvaluation(e))
	}
	for _, e := range r.Errors {
		run.Errors = append(run.Errors, api.RunError{Error: e.Error, Timestamp: e.Timestamp})
	}

	return run
}

func convertRuns(rs []database.TrainingRun) []api.Run {
	runs := make([]api.Run, 0, len(rs))
	for _, r := range rs {
		runs = append(runs, convertRun(r))
	}
	return runs
}

func convertTransaction(tx core.Transaction) api.TagResult {
	result := api.TagResult{
		Text:            tx.Text,
		Tokens:          make([]api.Token, 0, len(tx.Tokens)),
		Entities:        make([]api.Entity, 0, len(tx.Entities)),
		Items:           make([]api.LineItem, 0, len(tx.Items)),
		TransactionType: string(tx.Type),
		Date:            tx.Date,
		Total:           tx.Total,
	}

	for _, t := range tx.Tokens {
		result.Tokens = append(result.Tokens, api.Token{Text: t.Text, Start: t.Start, End: t.End, Tag: string(t.Tag)})
	}
	for _, e := range tx.Entities {
		result.Entities = append(result.Entities, api.Entity{
			Label:    e.Label,
			Text:     e.Text,
			Start:    e.Start,
			End:      e.End,
			LContext: e.LContext,
			RContext: e.RContext,
		})
	}
	for _, item := range tx.Items {
		result.Items = append(result.Items, api.LineItem{
			Name:     item.Name,
			Category: item.Category,
			Quantity: item.Quantity,
			Price:    item.Price,
			Total:    item.Total,
		})
	}

	return result
}
