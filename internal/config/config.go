package config

import (
	"context"
	"fmt"
	"log/slog"

	"ledger-ner/internal/lexicon"
	"ledger-ner/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type StorageConfig struct {
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	LocalStorageDir   string `env:"LOCAL_STORAGE_DIR" envDefault:"./data/storage"`
	ModelBucketName   string `env:"MODEL_BUCKET_NAME" envDefault:"models"`
}

// UseS3 reports whether model artifacts go to S3/MinIO rather than the local
// directory.
func (c StorageConfig) UseS3() bool {
	return c.S3EndpointURL != "" || c.S3AccessKeyID != ""
}

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"./data/ledger-ner.db"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	APIPort     int    `env:"API_PORT" envDefault:"8001"`
	MaxTagBatch int    `env:"MAX_TAG_BATCH" envDefault:"256"`
	LexiconPath string `env:"LEXICON_PATH"`

	Storage StorageConfig
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.MaxTagBatch <= 0 {
		return nil, fmt.Errorf("MAX_TAG_BATCH must be positive, got %d", cfg.MaxTagBatch)
	}
	if cfg.Storage.S3EndpointURL != "" && (cfg.Storage.S3AccessKeyID == "" || cfg.Storage.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return &cfg, nil
}

// Catalog returns the lexicon override at LexiconPath, or the built-in one.
func (c *Config) Catalog() (*lexicon.Catalog, error) {
	if c.LexiconPath == "" {
		return lexicon.Default(), nil
	}
	return lexicon.Load(c.LexiconPath)
}

// StorageProvider builds the configured provider and makes sure the model
// bucket exists.
func (c *Config) StorageProvider(ctx context.Context) (storage.Provider, error) {
	var (
		provider storage.Provider
		err      error
	)
	if c.Storage.UseS3() {
		provider, err = storage.NewS3Provider(&storage.S3ProviderConfig{
			S3EndpointURL:     c.Storage.S3EndpointURL,
			S3AccessKeyID:     c.Storage.S3AccessKeyID,
			S3SecretAccessKey: c.Storage.S3SecretAccessKey,
			S3Region:          c.Storage.S3Region,
		})
	} else {
		provider, err = storage.NewLocalProvider(c.Storage.LocalStorageDir)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating storage provider: %w", err)
	}

	if err := provider.CreateBucket(ctx, c.Storage.ModelBucketName); err != nil {
		return nil, fmt.Errorf("error creating model bucket: %w", err)
	}
	return provider, nil
}
