package vectorizer_test

import (
	"testing"

	"ledger-ner/internal/core/features"
	"ledger-ner/internal/core/vectorizer"
	"ledger-ner/internal/lexicon"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(tokens ...string) []features.Record {
	return features.NewExtractor(lexicon.Default()).Sentence(tokens)
}

func TestFitTransformSortsVocabulary(t *testing.T) {
	v := vectorizer.New()
	m, err := v.FitTransform(records("beli", "semen"))
	require.NoError(t, err)

	vocab := v.Vocabulary()
	assert.Equal(t, 0, vocab["has_digit"])
	assert.Less(t, vocab["word=beli"], vocab["word=semen"])
	assert.Less(t, vocab["prefix_1=b"], vocab["prefix_1=s"])

	assert.Equal(t, 2, m.NumRows)
	assert.Equal(t, v.Size(), m.NumCols)

	indices, data := m.Row(0)
	assert.IsIncreasing(t, indices)
	assert.Len(t, data, len(indices))
	assert.Contains(t, indices, vocab["word=beli"])
}

func TestVocabularyIsFrozenAfterFit(t *testing.T) {
	v := vectorizer.New()
	_, err := v.FitTransform(records("beli", "semen"))
	require.NoError(t, err)
	size := v.Size()

	m, err := v.Transform(records("jual", "pasir", "50rb"))
	require.NoError(t, err)
	assert.Equal(t, size, v.Size())
	assert.Equal(t, size, m.NumCols)
	assert.Equal(t, 3, m.NumRows)

	_, ok := v.Vocabulary()["word=pasir"]
	assert.False(t, ok)

	_, err = v.FitTransform(records("pasir"))
	assert.ErrorIs(t, err, vectorizer.ErrAlreadyFitted)
	assert.Equal(t, size, v.Size())
}

func TestTransformDropsUnknownAndZeroEntries(t *testing.T) {
	v := vectorizer.New()
	_, err := v.FitTransform(records("50rb"))
	require.NoError(t, err)
	vocab := v.Vocabulary()

	m, err := v.Transform(records("zzzz"))
	require.NoError(t, err)

	indices, data := m.Row(0)
	for i, idx := range indices {
		assert.NotZero(t, data[i])
		assert.NotEqual(t, vocab["word=50rb"], idx)
	}
	assert.Contains(t, indices, vocab["length"])
	assert.NotContains(t, indices, vocab["is_price_like"])
}

func TestTransformRequiresFit(t *testing.T) {
	_, err := vectorizer.New().Transform(records("semen"))
	assert.ErrorIs(t, err, vectorizer.ErrNotFitted)
}

func TestFromVocabulary(t *testing.T) {
	v := vectorizer.New()
	_, err := v.FitTransform(records("beli", "50", "sak", "semen"))
	require.NoError(t, err)

	restored, err := vectorizer.FromVocabulary(v.Vocabulary())
	require.NoError(t, err)

	in := records("beli", "2", "sak", "pasir")
	a, err := v.Transform(in)
	require.NoError(t, err)
	b, err := restored.Transform(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = vectorizer.FromVocabulary(map[string]int{"a": 0, "b": 0})
	assert.Error(t, err)
	_, err = vectorizer.FromVocabulary(map[string]int{"a": 2})
	assert.Error(t, err)
}
