package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ledger-ner/internal/config"
	"ledger-ner/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir so a stray .env in the package directory is not
// picked up.
func chdir(t *testing.T, dir string) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) }) //nolint:errcheck
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.APIPort)
	assert.Equal(t, 256, cfg.MaxTagBatch)
	assert.Equal(t, "models", cfg.Storage.ModelBucketName)
	assert.Equal(t, "us-east-1", cfg.Storage.S3Region)
	assert.False(t, cfg.Storage.UseS3())

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	assert.NotEmpty(t, catalog.Items())
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("API_PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/runs")
	t.Setenv("S3_ENDPOINT_URL", "http://minio:9000")
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("MODEL_BUCKET_NAME", "trained")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, "postgres://user:pass@db:5432/runs", cfg.DatabaseURL)
	assert.Equal(t, "trained", cfg.Storage.ModelBucketName)
	assert.True(t, cfg.Storage.UseS3())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAX_TAG_BATCH=12\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("MAX_TAG_BATCH") })

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxTagBatch)
}

func TestLoadRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("API_PORT", "not-a-port")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("API_PORT", "8001")
	t.Setenv("MAX_TAG_BATCH", "0")
	_, err = config.Load()
	assert.Error(t, err)
}

func TestLocalStorageProvider(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LOCAL_STORAGE_DIR", filepath.Join(t.TempDir(), "store"))

	cfg, err := config.Load()
	require.NoError(t, err)

	provider, err := cfg.StorageProvider(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalProvider{}, provider)

	objects, err := provider.ListObjects(context.Background(), cfg.Storage.ModelBucketName, "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLexiconOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LEXICON_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = cfg.Catalog()
	assert.Error(t, err)
}
