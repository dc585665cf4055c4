package core_test

import (
	"testing"
	"time"

	"ledger-ner/internal/core"
	"ledger-ner/internal/core/features"
	"ledger-ner/internal/core/model"
	"ledger-ner/internal/core/types"
	"ledger-ner/internal/core/vectorizer"
	"ledger-ner/internal/lexicon"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lookupModel tags each token from a fixed word table, defaulting to O.
type lookupModel struct {
	tags    map[string]types.Tag
	records []features.Record
}

func (m *lookupModel) Transform(records []features.Record) (*vectorizer.Matrix, error) {
	m.records = records
	return &vectorizer.Matrix{NumRows: len(records), IndPtr: make([]int, len(records)+1)}, nil
}

func (m *lookupModel) Predict(X *vectorizer.Matrix) ([]string, error) {
	out := make([]string, X.NumRows)
	for i, r := range m.records {
		tag, ok := m.tags[r.Word]
		if !ok {
			tag = types.Outside
		}
		out[i] = string(tag)
	}
	return out, nil
}

func TestParseTransaction(t *testing.T) {
	catalog := lexicon.Default()
	lookup := &lookupModel{tags: map[string]types.Tag{
		"semen": types.BeginItem,
		"2":     types.BeginQty,
		"sak":   types.InsideQty,
		"100rb": types.BeginPrice,
		"paku":  types.BeginItem,
		"15rb":  types.BeginPrice,
	}}
	tagger := model.NewTagger(catalog, lookup, lookup)

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	text := "beli semen 2 sak 100rb, paku 15rb tgl 5 feb"

	tx, err := core.ParseTransaction(tagger, catalog, text, now)
	require.NoError(t, err)

	assert.Equal(t, core.Expense, tx.Type)
	require.Len(t, tx.Items, 2)

	assert.Equal(t, "semen", tx.Items[0].Name)
	assert.Equal(t, 2, tx.Items[0].Quantity)
	assert.InDelta(t, 100_000, tx.Items[0].Total, 1e-9)
	assert.InDelta(t, 50_000, tx.Items[0].Price, 1e-9)

	assert.Equal(t, "paku", tx.Items[1].Name)
	assert.InDelta(t, 15_000, tx.Items[1].Total, 1e-9)

	assert.InDelta(t, 115_000, tx.Total, 1e-9)

	require.NotNil(t, tx.Date)
	assert.Equal(t, time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC), *tx.Date)

	// The comma is split off "100rb," and keeps its own offset.
	var comma *model.TaggedToken
	for i := range tx.Tokens {
		if tx.Tokens[i].Text == "," {
			comma = &tx.Tokens[i]
		}
	}
	require.NotNil(t, comma)
	assert.Equal(t, ",", text[comma.Start:comma.End])

	labels := make([]string, len(tx.Entities))
	for i, e := range tx.Entities {
		labels[i] = e.Label
	}
	assert.Equal(t, []string{"ITEM", "QTY", "PRICE", "ITEM", "PRICE"}, labels)
	assert.Equal(t, "2 sak", tx.Entities[1].Text)
}

func TestParseTransactionEmpty(t *testing.T) {
	catalog := lexicon.Default()
	lookup := &lookupModel{}
	tagger := model.NewTagger(catalog, lookup, lookup)

	tx, err := core.ParseTransaction(tagger, catalog, "   ", time.Now())
	require.NoError(t, err)
	assert.Empty(t, tx.Tokens)
	assert.Empty(t, tx.Items)
	assert.Nil(t, tx.Date)
	assert.Equal(t, core.Unknown, tx.Type)
}
