package training

import (
	"errors"
	"fmt"
	"slices"

	"ledger-ner/internal/core/naivebayes"
	"ledger-ner/internal/core/types"
)

const (
	DefaultMaxSamples  = 10_000_000
	DefaultChunkSize   = 1_000_000
	DefaultEvalSamples = 100_000
	DefaultSeed        = 42

	maxMismatches = 3
)

var ErrInvalidConfig = errors.New("invalid training config")

// Config controls a training session. Sample counts are sentences, not tokens.
type Config struct {
	MaxSamples  int
	ChunkSize   int
	EvalSamples int
	Classes     []types.Tag
	Alpha       float64
	Seed        int64
}

func DefaultConfig() Config {
	return Config{
		MaxSamples:  DefaultMaxSamples,
		ChunkSize:   DefaultChunkSize,
		EvalSamples: DefaultEvalSamples,
		Classes:     slices.Clone(types.AllTags),
		Alpha:       naivebayes.DefaultAlpha,
		Seed:        DefaultSeed,
	}
}

func (c Config) Validate() error {
	if c.MaxSamples <= 0 {
		return fmt.Errorf("%w: max samples must be positive, got %d", ErrInvalidConfig, c.MaxSamples)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.EvalSamples < 0 {
		return fmt.Errorf("%w: eval samples must not be negative, got %d", ErrInvalidConfig, c.EvalSamples)
	}
	if c.Alpha <= 0 {
		return fmt.Errorf("%w: alpha must be positive, got %v", ErrInvalidConfig, c.Alpha)
	}

	// The generator can produce every tag, so a class set without one of
	// them would reject a training chunk.
	have := make(map[types.Tag]bool, len(c.Classes))
	for _, tag := range c.Classes {
		if have[tag] {
			return fmt.Errorf("%w: class set lists %s more than once", ErrInvalidConfig, tag)
		}
		have[tag] = true
	}
	for _, tag := range types.AllTags {
		if !have[tag] {
			return fmt.Errorf("%w: class set is missing %s", ErrInvalidConfig, tag)
		}
	}
	return nil
}
