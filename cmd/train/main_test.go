package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ledger-ner/internal/core/model"
	"ledger-ner/internal/core/training"
	"ledger-ner/internal/lexicon"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedSession(t *testing.T) *training.Session {
	cfg := training.DefaultConfig()
	cfg.MaxSamples = 200
	cfg.ChunkSize = 200
	cfg.EvalSamples = 0

	session, err := training.NewSession(cfg, lexicon.Default())
	require.NoError(t, err)
	require.NoError(t, session.Run(context.Background()))
	return session
}

func TestWriteModel(t *testing.T) {
	session := trainedSession(t)
	path := filepath.Join(t.TempDir(), "out", "model.json")

	require.NoError(t, writeModel(session, path, "v-test"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	doc, err := model.Read(f)
	require.NoError(t, err)
	assert.Equal(t, "v-test", doc.Meta.Version)
	assert.Equal(t, 200, doc.Meta.TotalSamples)
}

func TestWriteModelReportsFileErrors(t *testing.T) {
	session := trainedSession(t)

	// A directory can not be opened as the output file.
	assert.Error(t, writeModel(session, t.TempDir(), "v-test"))
}
