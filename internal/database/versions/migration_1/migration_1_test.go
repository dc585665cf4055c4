package migration_1

import (
	"testing"
	"time"

	"ledger-ner/internal/database/versions/migration_0"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration_0.Migration(db))
	return db
}

func TestMigration(t *testing.T) {
	db := setupTestDB(t)

	run := migration_0.TrainingRun{
		Id:           uuid.New(),
		Name:         "before",
		Status:       "COMPLETED",
		CreationTime: time.Now().UTC(),
		MaxSamples:   10,
		ChunkSize:    5,
		EvalSamples:  2,
	}
	require.NoError(t, db.Create(&run).Error)

	require.NoError(t, Migration(db))
	assert.True(t, db.Migrator().HasColumn(&TrainingRun{}, "chunks_processed"))
	assert.True(t, db.Migrator().HasTable(&RunError{}))

	var chunks int
	require.NoError(t, db.Table("training_runs").Select("chunks_processed").Where("id = ?", run.Id).Scan(&chunks).Error)
	assert.Equal(t, 0, chunks)

	require.NoError(t, Rollback(db))
	assert.False(t, db.Migrator().HasColumn(&TrainingRun{}, "chunks_processed"))
	assert.False(t, db.Migrator().HasTable(&RunError{}))
}
