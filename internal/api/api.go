package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"ledger-ner/internal/core"
	"ledger-ner/internal/core/model"
	"ledger-ner/internal/core/training"
	"ledger-ner/internal/core/utils"
	"ledger-ner/internal/database"
	"ledger-ner/internal/lexicon"
	"ledger-ner/internal/messaging"
	"ledger-ner/internal/storage"
	"ledger-ner/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxLoadingModels = 64
)

type BackendService struct {
	db          *gorm.DB
	storage     storage.Provider
	publisher   messaging.Publisher
	catalog     *lexicon.Catalog
	modelBucket string
	maxBatch    int

	taggersMu sync.RWMutex
	taggers   map[uuid.UUID]*model.Tagger
	loading   *utils.KeyedMutex
}

func NewBackendService(db *gorm.DB, storage storage.Provider, publisher messaging.Publisher, catalog *lexicon.Catalog, modelBucket string, maxBatch int) *BackendService {
	return &BackendService{
		db:          db,
		storage:     storage,
		publisher:   publisher,
		catalog:     catalog,
		modelBucket: modelBucket,
		maxBatch:    maxBatch,
		taggers:     make(map[uuid.UUID]*model.Tagger),
		loading:     utils.NewKeyedMutex(maxLoadingModels),
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", RestHandler(s.SubmitRun))
		r.Get("/", RestHandler(s.ListRuns))
		r.Get("/{run_id}", RestHandler(s.GetRun))
		r.Get("/{run_id}/model", RestHandler(s.GetRunModel))
		r.Post("/{run_id}/tag", RestHandler(s.TagText))
	})
}

func (s *BackendService) SubmitRun(r *http.Request) (any, error) {
	req, err := ParseRequest[api.TrainRequest](r)
	if err != nil {
		return nil, err
	}

	if err := validateName(req.Name); err != nil {
		return nil, err
	}

	cfg := training.DefaultConfig()
	if req.MaxSamples != 0 {
		cfg.MaxSamples = req.MaxSamples
	}
	if req.ChunkSize != 0 {
		cfg.ChunkSize = req.ChunkSize
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Alpha != 0 {
		cfg.Alpha = req.Alpha
	}
	cfg.EvalSamples = req.EvalSamples

	if err := cfg.Validate(); err != nil {
		return nil, CodedError(http.StatusUnprocessableEntity, err)
	}

	ctx := r.Context()

	run := database.TrainingRun{
		Id:           uuid.New(),
		Name:         req.Name,
		Status:       database.JobQueued,
		CreationTime: time.Now().UTC(),
		MaxSamples:   cfg.MaxSamples,
		ChunkSize:    cfg.ChunkSize,
		EvalSamples:  cfg.EvalSamples,
		Seed:         cfg.Seed,
		Alpha:        cfg.Alpha,
	}

	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		slog.Error("error creating training run", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create training run entry")
	}

	if err := s.publisher.PublishTrainTask(ctx, messaging.TrainTaskPayload{RunId: run.Id}); err != nil {
		slog.Error("error publishing train task", "run_id", run.Id, "error", err)
		database.SaveRunError(ctx, s.db, run.Id, fmt.Sprintf("failed to queue training task: %v", err))
		database.UpdateRunStatus(ctx, s.db, run.Id, database.JobFailed) //nolint:errcheck
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue training task")
	}

	slog.Info("submitted training run", "run_id", run.Id, "name", run.Name)

	return api.TrainResponse{RunId: run.Id}, nil
}

func (s *BackendService) ListRuns(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListRunsParams](r)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := s.db.WithContext(r.Context()).Order("creation_time DESC").Limit(limit)
	if params.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(params.Status))
	}

	var runs []database.TrainingRun
	if err := query.Find(&runs).Error; err != nil {
		slog.Error("error listing training runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing training runs")
	}

	return convertRuns(runs), nil
}

func (s *BackendService) getRun(r *http.Request, preload bool) (database.TrainingRun, error) {
	runId, err := runIdParam(r)
	if err != nil {
		return database.TrainingRun{}, err
	}

	query := s.db.WithContext(r.Context())
	if preload {
		query = query.
			Preload("Evaluations", func(db *gorm.DB) *gorm.DB { return db.Order("chunk ASC") }).
			Preload("Errors", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp ASC") })
	}

	var run database.TrainingRun
	if err := query.First(&run, "id = ?", runId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return run, CodedErrorf(http.StatusNotFound, "training run not found")
		}
		slog.Error("error getting training run", "run_id", runId, "error", err)
		return run, CodedErrorf(http.StatusInternalServerError, "error retrieving training run record")
	}

	return run, nil
}

func (s *BackendService) GetRun(r *http.Request) (any, error) {
	run, err := s.getRun(r, true)
	if err != nil {
		return nil, err
	}
	return convertRun(run), nil
}

func (s *BackendService) readModel(r *http.Request, run database.TrainingRun) ([]byte, error) {
	if run.Status != database.JobCompleted || !run.ArtifactKey.Valid {
		return nil, CodedErrorf(http.StatusConflict, "training run %s is %s, model is available once it has completed", run.Id, run.Status)
	}

	data, err := s.storage.GetObject(r.Context(), s.modelBucket, run.ArtifactKey.String)
	if err != nil {
		slog.Error("error downloading model", "run_id", run.Id, "key", run.ArtifactKey.String, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error downloading model")
	}
	return data, nil
}

func (s *BackendService) GetRunModel(r *http.Request) (any, error) {
	run, err := s.getRun(r, false)
	if err != nil {
		return nil, err
	}

	data, err := s.readModel(r, run)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (s *BackendService) cachedTagger(runId uuid.UUID) *model.Tagger {
	s.taggersMu.RLock()
	defer s.taggersMu.RUnlock()
	return s.taggers[runId]
}

// loadTagger returns the tagger for a completed run, downloading the model on
// first use. Concurrent first requests for one run share a single download.
func (s *BackendService) loadTagger(r *http.Request, runId uuid.UUID) (*model.Tagger, error) {
	if tagger := s.cachedTagger(runId); tagger != nil {
		return tagger, nil
	}

	var tagger *model.Tagger
	err := s.loading.WithLock(runId.String(), func() error {
		if tagger = s.cachedTagger(runId); tagger != nil {
			return nil
		}

		run, err := s.getRun(r, false)
		if err != nil {
			return err
		}

		data, err := s.readModel(r, run)
		if err != nil {
			return err
		}

		doc, err := model.Read(bytes.NewReader(data))
		if err != nil {
			slog.Error("error reading model document", "run_id", runId, "error", err)
			return CodedErrorf(http.StatusInternalServerError, "error reading model document")
		}

		tagger, err = model.LoadTagger(doc, s.catalog)
		if err != nil {
			slog.Error("error loading tagger", "run_id", runId, "error", err)
			return CodedErrorf(http.StatusInternalServerError, "error loading model")
		}

		s.taggersMu.Lock()
		s.taggers[runId] = tagger
		s.taggersMu.Unlock()

		slog.Info("loaded model", "run_id", runId, "features", doc.Meta.TotalFeatures)
		return nil
	})
	if err != nil {
		var cerr *codedError
		if errors.As(err, &cerr) {
			return nil, err
		}
		return nil, CodedError(http.StatusServiceUnavailable, err)
	}
	return tagger, nil
}

func (s *BackendService) TagText(r *http.Request) (any, error) {
	runId, err := runIdParam(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.TagRequest](r)
	if err != nil {
		return nil, err
	}

	texts := req.Texts
	if req.Text != "" {
		texts = append([]string{req.Text}, texts...)
	}
	if len(texts) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "request must contain Text or Texts")
	}
	if len(texts) > s.maxBatch {
		return nil, CodedErrorf(http.StatusRequestEntityTooLarge, "request contains %d texts, at most %d are allowed", len(texts), s.maxBatch)
	}

	tagger, err := s.loadTagger(r, runId)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	results, err := utils.MapInPool(texts, func(text string) (api.TagResult, error) {
		tx, err := core.ParseTransaction(tagger, s.catalog, text, now)
		if err != nil {
			return api.TagResult{}, err
		}
		return convertTransaction(tx), nil
	}, runtime.NumCPU())
	if err != nil {
		slog.Error("error tagging texts", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error tagging texts")
	}

	return api.TagResponse{Results: results}, nil
}
