package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"ledger-ner/internal/core/datagen"
	"ledger-ner/internal/core/features"
	"ledger-ner/internal/core/model"
	"ledger-ner/internal/core/naivebayes"
	"ledger-ner/internal/core/types"
	"ledger-ner/internal/core/vectorizer"
	"ledger-ner/internal/lexicon"
)

var ErrDone = errors.New("training session already reached max samples")

// evalSeedOffset separates the evaluation stream from the training stream.
const evalSeedOffset = 7919

type Phase int

const (
	Idle Phase = iota
	Generating
	Vectorizing
	Fitting
	Evaluating
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case Vectorizing:
		return "vectorizing"
	case Fitting:
		return "fitting"
	case Evaluating:
		return "evaluating"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type Mismatch struct {
	Token     string    `json:"token"`
	Predicted types.Tag `json:"predicted"`
	Expected  types.Tag `json:"expected"`
}

type Evaluation struct {
	Chunk              int
	AccumulatedSamples int
	Sentences          int
	Tokens             int
	Correct            int
	Accuracy           float64
	Mismatches         []Mismatch
}

type ChunkResult struct {
	Chunk              int
	Sentences          int
	Tokens             int
	AccumulatedSamples int
	VocabularySize     int
	Duration           time.Duration
	Evaluation         *Evaluation
}

type Option func(*Session)

// WithChunkHook registers a callback invoked after every processed chunk.
func WithChunkHook(fn func(ChunkResult)) Option {
	return func(s *Session) { s.onChunk = append(s.onChunk, fn) }
}

// WithPhaseHook registers a callback invoked on every phase transition.
func WithPhaseHook(fn func(Phase)) Option {
	return func(s *Session) { s.onPhase = append(s.onPhase, fn) }
}

// Session owns all state of one incremental training run. The vocabulary is
// fitted on the first chunk and frozen afterwards; later chunks only update
// the classifier counts. A session is not safe for concurrent use.
type Session struct {
	cfg       Config
	catalog   *lexicon.Catalog
	extractor *features.Extractor
	trainGen  *datagen.Generator
	evalGen   *datagen.Generator

	vec *vectorizer.DictVectorizer
	nb  *naivebayes.MultinomialNB

	accumulated int
	chunks      int
	phase       Phase
	lastEval    *Evaluation

	onChunk []func(ChunkResult)
	onPhase []func(Phase)
}

func NewSession(cfg Config, catalog *lexicon.Catalog, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		catalog:   catalog,
		extractor: features.NewExtractor(catalog),
		trainGen:  datagen.NewGenerator(catalog, rand.New(rand.NewSource(cfg.Seed))),
		evalGen:   datagen.NewGenerator(catalog, rand.New(rand.NewSource(cfg.Seed+evalSeedOffset))),
		vec:       vectorizer.New(),
		nb:        naivebayes.New(cfg.Alpha),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) Config() Config              { return s.cfg }
func (s *Session) Phase() Phase                { return s.phase }
func (s *Session) AccumulatedSamples() int     { return s.accumulated }
func (s *Session) ChunksProcessed() int        { return s.chunks }
func (s *Session) VocabularySize() int         { return s.vec.Size() }
func (s *Session) LastEvaluation() *Evaluation { return s.lastEval }

func (s *Session) Done() bool {
	return s.accumulated >= s.cfg.MaxSamples
}

func (s *Session) setPhase(p Phase) {
	s.phase = p
	for _, fn := range s.onPhase {
		fn(p)
	}
}

// Run processes chunks until MaxSamples sentences have been consumed. The
// context is checked between chunks, so a cancelled run stops with a
// consistent model covering every completed chunk.
func (s *Session) Run(ctx context.Context) error {
	slog.Info("starting training session", "max_samples", s.cfg.MaxSamples, "chunk_size", s.cfg.ChunkSize, "eval_samples", s.cfg.EvalSamples, "seed", s.cfg.Seed)
	start := time.Now()

	for !s.Done() {
		if err := ctx.Err(); err != nil {
			slog.Warn("training session cancelled", "accumulated", s.accumulated, "chunks", s.chunks)
			return err
		}
		if _, err := s.Step(ctx); err != nil {
			return err
		}
	}

	slog.Info("training session complete", "accumulated", s.accumulated, "chunks", s.chunks, "features", s.vec.Size(), "duration", time.Since(start))
	return nil
}

// Step processes one chunk of min(ChunkSize, remaining) sentences and, when
// the cumulative count lands on a multiple of ChunkSize, evaluates on a fresh
// batch.
func (s *Session) Step(ctx context.Context) (ChunkResult, error) {
	if s.Done() {
		return ChunkResult{}, ErrDone
	}
	start := time.Now()
	size := min(s.cfg.ChunkSize, s.cfg.MaxSamples-s.accumulated)

	s.setPhase(Generating)
	records, labels := s.flatten(s.trainGen.Chunk(size))

	if !s.nb.Initialized() {
		if err := s.nb.Initialize(tagStrings(s.cfg.Classes)); err != nil {
			s.setPhase(Idle)
			return ChunkResult{}, fmt.Errorf("error initializing classifier: %w", err)
		}
	}

	s.setPhase(Vectorizing)
	var (
		X   *vectorizer.Matrix
		err error
	)
	if !s.vec.Fitted() {
		X, err = s.vec.FitTransform(records)
	} else {
		X, err = s.vec.Transform(records)
	}
	if err != nil {
		s.setPhase(Idle)
		return ChunkResult{}, fmt.Errorf("error vectorizing chunk %d: %w", s.chunks+1, err)
	}

	s.setPhase(Fitting)
	if err := s.nb.PartialFit(X, labels); err != nil {
		s.setPhase(Idle)
		return ChunkResult{}, fmt.Errorf("error fitting chunk %d: %w", s.chunks+1, err)
	}

	s.accumulated += size
	s.chunks++

	result := ChunkResult{
		Chunk:              s.chunks,
		Sentences:          size,
		Tokens:             len(labels),
		AccumulatedSamples: s.accumulated,
		VocabularySize:     s.vec.Size(),
	}

	slog.Info("processed chunk", "chunk", s.chunks, "sentences", size, "tokens", len(labels), "accumulated", s.accumulated, "features", s.vec.Size())

	if s.accumulated%s.cfg.ChunkSize == 0 && s.cfg.EvalSamples > 0 {
		eval, err := s.Evaluate(ctx)
		if err != nil {
			s.setPhase(Idle)
			return ChunkResult{}, err
		}
		result.Evaluation = eval
	}

	s.setPhase(Idle)
	result.Duration = time.Since(start)
	for _, fn := range s.onChunk {
		fn(result)
	}
	return result, nil
}

// Evaluate scores the current model on EvalSamples fresh sentences drawn
// from the evaluation stream. The vocabulary is only used for transform.
func (s *Session) Evaluate(ctx context.Context) (*Evaluation, error) {
	if !s.nb.Fitted() {
		return nil, naivebayes.ErrNotFitted
	}
	s.setPhase(Evaluating)

	sentences := s.evalGen.Chunk(s.cfg.EvalSamples)
	records, labels := s.flatten(sentences)

	X, err := s.vec.Transform(records)
	if err != nil {
		return nil, fmt.Errorf("error vectorizing evaluation batch: %w", err)
	}
	predicted, err := s.nb.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("error predicting evaluation batch: %w", err)
	}

	tokens := make([]string, 0, len(labels))
	for _, sent := range sentences {
		tokens = append(tokens, sent.Tokens...)
	}

	eval := &Evaluation{
		Chunk:              s.chunks,
		AccumulatedSamples: s.accumulated,
		Sentences:          len(sentences),
		Tokens:             len(labels),
	}
	for i := range labels {
		if predicted[i] == labels[i] {
			eval.Correct++
		} else if len(eval.Mismatches) < maxMismatches {
			eval.Mismatches = append(eval.Mismatches, Mismatch{
				Token:     tokens[i],
				Predicted: types.Tag(predicted[i]),
				Expected:  types.Tag(labels[i]),
			})
		}
	}
	if eval.Tokens > 0 {
		eval.Accuracy = float64(eval.Correct) / float64(eval.Tokens)
	}

	slog.Info("evaluated model", "chunk", eval.Chunk, "accumulated", eval.AccumulatedSamples, "tokens", eval.Tokens, "accuracy", eval.Accuracy)
	for _, m := range eval.Mismatches {
		slog.Info("evaluation mismatch", "token", m.Token, "predicted", m.Predicted, "expected", m.Expected)
	}

	s.lastEval = eval
	return eval, nil
}

func (s *Session) flatten(sentences []types.Sentence) ([]features.Record, []string) {
	var records []features.Record
	var labels []string
	for _, sent := range sentences {
		records = append(records, s.extractor.Sentence(sent.Tokens)...)
		for _, tag := range sent.Tags {
			labels = append(labels, string(tag))
		}
	}
	return records, labels
}

func tagStrings(tags []types.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

// Tagger returns an inference view over the live model.
func (s *Session) Tagger() (*model.Tagger, error) {
	if !s.nb.Fitted() {
		return nil, naivebayes.ErrNotFitted
	}
	return model.NewTagger(s.catalog, s.vec, s.nb), nil
}

// Export snapshots the trained parameters into a model document.
func (s *Session) Export(version string) (*model.Document, error) {
	return model.Build(s.vec, s.nb, s.accumulated, version)
}
