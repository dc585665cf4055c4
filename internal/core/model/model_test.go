package model_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"ledger-ner/internal/core/features"
	"ledger-ner/internal/core/model"
	"ledger-ner/internal/core/naivebayes"
	"ledger-ner/internal/core/types"
	"ledger-ner/internal/core/vectorizer"
	"ledger-ner/internal/lexicon"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainTiny(t *testing.T) (*vectorizer.DictVectorizer, *naivebayes.MultinomialNB) {
	catalog := lexicon.Default()
	ex := features.NewExtractor(catalog)

	sentences := []types.Sentence{
		{Tokens: []string{"beli", "2", "kg", "gula"}, Tags: []types.Tag{types.Outside, types.BeginQty, types.InsideQty, types.BeginItem}},
		{Tokens: []string{"kopi", "15k"}, Tags: []types.Tag{types.BeginItem, types.BeginPrice}},
	}
	var records []features.Record
	var labels []string
	for _, s := range sentences {
		records = append(records, ex.Sentence(s.Tokens)...)
		for _, tag := range s.Tags {
			labels = append(labels, string(tag))
		}
	}

	vec := vectorizer.New()
	X, err := vec.FitTransform(records)
	require.NoError(t, err)

	nb := naivebayes.New(naivebayes.DefaultAlpha)
	classes := make([]string, len(types.AllTags))
	for i, tag := range types.AllTags {
		classes[i] = string(tag)
	}
	require.NoError(t, nb.Initialize(classes))
	require.NoError(t, nb.PartialFit(X, labels))
	return vec, nb
}

func TestDocumentJSONLayout(t *testing.T) {
	vec, nb := trainTiny(t)
	doc, err := model.Build(vec, nb, 2, "1.0")
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	require.NoError(t, doc.Write(buf))
	out := buf.String()
	for _, key := range []string{`"classes"`, `"class_log_prior"`, `"feature_log_prob"`, `"vocabulary"`, `"meta"`, `"total_samples":2`, `"schema":"v1"`} {
		assert.Contains(t, out, key)
	}

	// Unseen classes get a finite prior so the document stays valid JSON.
	for _, p := range doc.ClassLogPrior {
		assert.False(t, math.IsInf(p, 0))
	}
}

func TestReadRejectsMalformedDocuments(t *testing.T) {
	_, err := model.Read(strings.NewReader(`{"classes": []}`))
	assert.Error(t, err)

	_, err = model.Read(strings.NewReader(`{"classes": ["O"], "class_log_prior": [0], "feature_log_prob": [[0, 0]], "vocabulary": {"a": 0}}`))
	assert.Error(t, err)

	_, err = model.Read(strings.NewReader(`{"classes": ["O"], "class_log_prior": [0], "feature_log_prob": [[0]], "vocabulary": {"a": 0}, "meta": {"schema": "v0"}}`))
	assert.Error(t, err)

	_, err = model.Read(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestLoadedTaggerMatchesLive(t *testing.T) {
	vec, nb := trainTiny(t)
	doc, err := model.Build(vec, nb, 2, "1.0")
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	require.NoError(t, doc.Write(buf))
	loaded, err := model.Read(buf)
	require.NoError(t, err)

	restored, err := model.LoadTagger(loaded, lexicon.Default())
	require.NoError(t, err)
	live := model.NewTagger(lexicon.Default(), vec, nb)

	for _, text := range []string{"beli 2 kg gula", "kopi 15k", "jual   semen 3 sak 50rb"} {
		want, err := live.Tag(text)
		require.NoError(t, err)
		got, err := restored.Tag(text)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestTagKeepsOffsets(t *testing.T) {
	vec, nb := trainTiny(t)
	tagger := model.NewTagger(lexicon.Default(), vec, nb)

	text := "  kopi   15k "
	tokens, err := tagger.Tag(text)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	for _, tok := range tokens {
		assert.Equal(t, tok.Text, text[tok.Start:tok.End])
	}

	empty, err := tagger.Tag("   ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBuildRequiresTrainedModel(t *testing.T) {
	_, err := model.Build(vectorizer.New(), naivebayes.New(1), 0, "x")
	assert.Error(t, err)
}
