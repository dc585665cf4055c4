package naivebayes_test

import (
	"math"
	"testing"

	"ledger-ner/internal/core/naivebayes"
	"ledger-ner/internal/core/vectorizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dense builds a CSR matrix from dense rows, skipping zeros.
func dense(rows ...[]float64) *vectorizer.Matrix {
	m := &vectorizer.Matrix{NumCols: len(rows[0]), IndPtr: []int{0}}
	for _, row := range rows {
		for j, v := range row {
			if v != 0 {
				m.Indices = append(m.Indices, j)
				m.Data = append(m.Data, v)
			}
		}
		m.IndPtr = append(m.IndPtr, len(m.Indices))
		m.NumRows++
	}
	return m
}

func TestPartialFitRequiresClasses(t *testing.T) {
	nb := naivebayes.New(1)
	err := nb.PartialFit(dense([]float64{1, 0}), []string{"a"})
	assert.ErrorIs(t, err, naivebayes.ErrNotInitialized)
}

func TestPartialFitRejectsUnknownLabel(t *testing.T) {
	nb := naivebayes.New(1)
	require.NoError(t, nb.Initialize([]string{"a", "b"}))

	err := nb.PartialFit(dense([]float64{1, 0}, []float64{0, 1}), []string{"a", "c"})
	assert.ErrorIs(t, err, naivebayes.ErrUnknownClass)
	assert.False(t, nb.Fitted())
}

func TestInitializeRejectsDuplicates(t *testing.T) {
	nb := naivebayes.New(1)
	assert.Error(t, nb.Initialize([]string{"a", "a"}))
	assert.Error(t, nb.Initialize(nil))
}

func TestLogProbabilities(t *testing.T) {
	nb := naivebayes.New(1)
	require.NoError(t, nb.Initialize([]string{"a", "b"}))
	require.NoError(t, nb.PartialFit(dense([]float64{1, 0}, []float64{0, 2}), []string{"a", "b"}))

	prior := nb.ClassLogPrior()
	assert.InDelta(t, math.Log(0.5), prior[0], 1e-12)
	assert.InDelta(t, math.Log(0.5), prior[1], 1e-12)

	flp := nb.FeatureLogProb()
	assert.InDelta(t, math.Log(2.0/3.0), flp[0][0], 1e-12)
	assert.InDelta(t, math.Log(1.0/3.0), flp[0][1], 1e-12)
	assert.InDelta(t, math.Log(1.0/4.0), flp[1][0], 1e-12)
	assert.InDelta(t, math.Log(3.0/4.0), flp[1][1], 1e-12)

	pred, err := nb.Predict(dense([]float64{3, 0}, []float64{0, 1}, []float64{0, 0}))
	require.NoError(t, err)
	// The empty row ties on the prior and goes to the first class.
	assert.Equal(t, []string{"a", "b", "a"}, pred)
}

func TestIncrementalMatchesSingleFit(t *testing.T) {
	rows := [][]float64{{1, 0, 2}, {0, 1, 0}, {3, 0, 0}, {0, 0, 1}}
	labels := []string{"x", "y", "x", "y"}

	whole := naivebayes.New(0.01)
	require.NoError(t, whole.Initialize([]string{"x", "y"}))
	require.NoError(t, whole.PartialFit(dense(rows...), labels))

	parts := naivebayes.New(0.01)
	require.NoError(t, parts.Initialize([]string{"x", "y"}))
	require.NoError(t, parts.PartialFit(dense(rows[:2]...), labels[:2]))
	require.NoError(t, parts.PartialFit(dense(rows[2:]...), labels[2:]))

	assert.InDeltaSlice(t, whole.ClassLogPrior(), parts.ClassLogPrior(), 1e-12)
	for c := range whole.FeatureLogProb() {
		assert.InDeltaSlice(t, whole.FeatureLogProb()[c], parts.FeatureLogProb()[c], 1e-12)
	}
}

func TestColumnCountIsFixed(t *testing.T) {
	nb := naivebayes.New(0.01)
	require.NoError(t, nb.Initialize([]string{"x"}))
	require.NoError(t, nb.PartialFit(dense([]float64{1, 0}), []string{"x"}))
	assert.Error(t, nb.PartialFit(dense([]float64{1, 0, 1}), []string{"x"}))
}

func TestUnseenClassHasFinitePrior(t *testing.T) {
	nb := naivebayes.New(0.01)
	require.NoError(t, nb.Initialize([]string{"seen", "unseen"}))
	require.NoError(t, nb.PartialFit(dense([]float64{1, 1}), []string{"seen"}))

	prior := nb.ClassLogPrior()
	assert.Equal(t, 0.0, prior[0])
	assert.False(t, math.IsInf(prior[1], -1))
	assert.Equal(t, naivebayes.UnseenClassLogPrior, prior[1])

	pred, err := nb.Predict(dense([]float64{0, 5}))
	require.NoError(t, err)
	assert.Equal(t, []string{"seen"}, pred)
}

func TestFromParameters(t *testing.T) {
	nb := naivebayes.New(0.5)
	require.NoError(t, nb.Initialize([]string{"a", "b", "c"}))
	require.NoError(t, nb.PartialFit(
		dense([]float64{1, 0, 0}, []float64{0, 1, 0}, []float64{0, 0, 1}, []float64{1, 1, 0}),
		[]string{"a", "b", "c", "a"},
	))

	restored, err := naivebayes.FromParameters(nb.Classes(), nb.ClassLogPrior(), nb.FeatureLogProb())
	require.NoError(t, err)

	X := dense([]float64{2, 0, 0}, []float64{0, 3, 1}, []float64{0, 0, 4})
	want, err := nb.Predict(X)
	require.NoError(t, err)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.ErrorIs(t, restored.PartialFit(X, []string{"a", "b", "c"}), naivebayes.ErrPredictOnly)

	_, err = naivebayes.FromParameters([]string{"a"}, []float64{0, 0}, [][]float64{{0}})
	assert.Error(t, err)
}
