package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	backend "ledger-ner/internal/api"
	"ledger-ner/internal/core"
	"ledger-ner/internal/core/model"
	"ledger-ner/internal/core/training"
	"ledger-ner/internal/database"
	"ledger-ner/internal/lexicon"
	"ledger-ner/internal/messaging"
	"ledger-ner/internal/storage"
	"ledger-ner/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const modelBucket = "models"

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

type testEnv struct {
	db      *gorm.DB
	queue   *messaging.InMemoryQueue
	storage *storage.LocalProvider
	router  chi.Router
}

func newTestEnv(t *testing.T, create ...any) *testEnv {
	db := createDB(t, create...)

	provider, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	service := backend.NewBackendService(db, provider, queue, lexicon.Default(), modelBucket, 4)
	router := chi.NewRouter()
	service.AddRoutes(router)

	return &testEnv{db: db, queue: queue, storage: provider, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitRun(t *testing.T) {
	env := newTestEnv(t)

	seed := int64(7)
	rec := env.do(t, http.MethodPost, "/runs", api.TrainRequest{
		Name:        "small-run",
		MaxSamples:  5000,
		ChunkSize:   1000,
		EvalSamples: 100,
		Seed:        &seed,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[api.TrainResponse](t, rec)

	var run database.TrainingRun
	require.NoError(t, env.db.First(&run, "id = ?", res.RunId).Error)
	assert.Equal(t, database.JobQueued, run.Status)
	assert.Equal(t, 5000, run.MaxSamples)
	assert.Equal(t, 1000, run.ChunkSize)
	assert.Equal(t, 100, run.EvalSamples)
	assert.Equal(t, int64(7), run.Seed)
	assert.Equal(t, training.DefaultConfig().Alpha, run.Alpha)

	task := <-env.queue.Tasks()
	assert.Equal(t, messaging.TrainingQueue, task.Type())
	var payload messaging.TrainTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, res.RunId, payload.RunId)
}

func TestSubmitRunDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/runs", api.TrainRequest{Name: "defaults"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[api.TrainResponse](t, rec)

	var run database.TrainingRun
	require.NoError(t, env.db.First(&run, "id = ?", res.RunId).Error)
	assert.Equal(t, training.DefaultMaxSamples, run.MaxSamples)
	assert.Equal(t, training.DefaultChunkSize, run.ChunkSize)
	assert.Equal(t, int64(training.DefaultSeed), run.Seed)
	assert.Equal(t, 0, run.EvalSamples)
}

func TestSubmitRunValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct {
		name string
		req  any
		code int
	}{
		{"bad name", api.TrainRequest{Name: "no spaces allowed"}, http.StatusBadRequest},
		{"empty name", api.TrainRequest{}, http.StatusBadRequest},
		{"negative chunk", api.TrainRequest{Name: "x", ChunkSize: -1}, http.StatusUnprocessableEntity},
		{"negative eval", api.TrainRequest{Name: "x", EvalSamples: -5}, http.StatusUnprocessableEntity},
		{"malformed", "not an object", http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/runs", tc.req)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&database.TrainingRun{}).Count(&count).Error)
	assert.Zero(t, count)
}

func newRun(status string, created time.Time) *database.TrainingRun {
	return &database.TrainingRun{
		Id:           uuid.New(),
		Name:         "run-" + status,
		Status:       status,
		CreationTime: created,
		MaxSamples:   100,
		ChunkSize:    10,
		EvalSamples:  5,
		Seed:         42,
		Alpha:        0.01,
	}
}

func TestListRuns(t *testing.T) {
	now := time.Now().UTC()
	queued := newRun(database.JobQueued, now.Add(-3*time.Minute))
	running := newRun(database.JobRunning, now.Add(-2*time.Minute))
	completed := newRun(database.JobCompleted, now.Add(-time.Minute))
	env := newTestEnv(t, queued, running, completed)

	rec := env.do(t, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]api.Run](t, rec)
	require.Len(t, runs, 3)
	assert.Equal(t, completed.Id, runs[0].Id)
	assert.Equal(t, queued.Id, runs[2].Id)

	rec = env.do(t, http.MethodGet, "/runs?status=running", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs = decode[[]api.Run](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, running.Id, runs[0].Id)

	rec = env.do(t, http.MethodGet, "/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.Run](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun(t *testing.T) {
	run := newRun(database.JobRunning, time.Now().UTC())
	run.StartTime = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	run.AccumulatedSamples = 20
	run.ChunksProcessed = 2

	env := newTestEnv(t, run,
		&database.Evaluation{RunId: run.Id, Chunk: 2, AccumulatedSamples: 20, Sentences: 5, Tokens: 40, Correct: 38, Accuracy: 0.95,
			Mismatches: datatypes.JSON(`[{"token":"sak","predicted":"O","expected":"I-QTY"}]`)},
		&database.Evaluation{RunId: run.Id, Chunk: 1, AccumulatedSamples: 10, Sentences: 5, Tokens: 40, Correct: 30, Accuracy: 0.75,
			Mismatches: datatypes.JSON(`[]`)},
		&database.RunError{RunId: run.Id, ErrorId: uuid.New(), Error: "worker restarted", Timestamp: time.Now().UTC()},
	)

	rec := env.do(t, http.MethodGet, "/runs/"+run.Id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.Run](t, rec)

	assert.Equal(t, run.Id, res.Id)
	assert.Equal(t, database.JobRunning, res.Status)
	assert.Equal(t, 20, res.AccumulatedSamples)
	assert.NotNil(t, res.StartTime)
	assert.Nil(t, res.CompletionTime)

	require.Len(t, res.Evaluations, 2)
	assert.Equal(t, 1, res.Evaluations[0].Chunk)
	assert.Empty(t, res.Evaluations[0].Mismatches)
	assert.Equal(t, []api.Mismatch{{Token: "sak", Predicted: "O", Expected: "I-QTY"}}, res.Evaluations[1].Mismatches)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "worker restarted", res.Errors[0].Error)

	rec = env.do(t, http.MethodGet, "/runs/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func trainSession(t *testing.T) *training.Session {
	cfg := training.DefaultConfig()
	cfg.MaxSamples = 2500
	cfg.ChunkSize = 1000
	cfg.EvalSamples = 0

	s, err := training.NewSession(cfg, lexicon.Default())
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	return s
}

func storeModel(t *testing.T, env *testEnv, s *training.Session, run *database.TrainingRun) {
	doc, err := s.Export(run.Id.String())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))

	key := core.ModelArtifactKey(run.Id)
	require.NoError(t, env.storage.PutObject(context.Background(), modelBucket, key, &buf))
	require.NoError(t, env.db.Model(run).Updates(map[string]any{
		"status":       database.JobCompleted,
		"artifact_key": key,
	}).Error)
}

func TestGetRunModel(t *testing.T) {
	run := newRun(database.JobRunning, time.Now().UTC())
	env := newTestEnv(t, run)

	rec := env.do(t, http.MethodGet, "/runs/"+run.Id.String()+"/model", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	storeModel(t, env, trainSession(t), run)

	rec = env.do(t, http.MethodGet, "/runs/"+run.Id.String()+"/model", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := model.Read(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2500, doc.Meta.TotalSamples)
	assert.Equal(t, run.Id.String(), doc.Meta.Version)
}

func TestTagText(t *testing.T) {
	run := newRun(database.JobRunning, time.Now().UTC())
	env := newTestEnv(t, run)

	rec := env.do(t, http.MethodPost, "/runs/"+run.Id.String()+"/tag", api.TagRequest{Text: "beli semen"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	session := trainSession(t)
	storeModel(t, env, session, run)

	texts := []string{"beli 50 sak semen gresik harganya 50rb", "token listrik 20rb"}
	rec = env.do(t, http.MethodPost, "/runs/"+run.Id.String()+"/tag", api.TagRequest{Text: texts[0], Texts: texts[1:]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[api.TagResponse](t, rec)
	require.Len(t, res.Results, 2)

	live, err := session.Tagger()
	require.NoError(t, err)

	assert.Equal(t, "EXPENSE", res.Results[0].TransactionType)

	for i, text := range texts {
		result := res.Results[i]
		assert.Equal(t, text, result.Text)

		want, err := live.Tag(text)
		require.NoError(t, err)
		require.Len(t, result.Tokens, len(want))
		for j, tok := range want {
			assert.Equal(t, string(tok.Tag), result.Tokens[j].Tag, "%s token %d", text, j)
			assert.Equal(t, tok.Text, text[result.Tokens[j].Start:result.Tokens[j].End])
		}
	}

	// Second request is served from the cached tagger even if storage is gone.
	require.NoError(t, env.storage.DeleteObject(context.Background(), modelBucket, core.ModelArtifactKey(run.Id)))
	rec = env.do(t, http.MethodPost, "/runs/"+run.Id.String()+"/tag", api.TagRequest{Text: "token listrik 20rb"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTagTextValidation(t *testing.T) {
	run := newRun(database.JobCompleted, time.Now().UTC())
	env := newTestEnv(t, run)

	rec := env.do(t, http.MethodPost, "/runs/"+run.Id.String()+"/tag", api.TagRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/runs/"+run.Id.String()+"/tag", api.TagRequest{Texts: []string{"a", "b", "c", "d", "e"}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = env.do(t, http.MethodPost, "/runs/"+uuid.New().String()+"/tag", api.TagRequest{Text: "kopi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
