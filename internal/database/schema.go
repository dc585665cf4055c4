package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobQueued    string = "QUEUED"
	JobRunning   string = "RUNNING"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

type TrainingRun struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string

	Status         string `gorm:"size:20;not null"`
	CreationTime   time.Time
	StartTime      sql.NullTime
	CompletionTime sql.NullTime

	MaxSamples  int `gorm:"not null"`
	ChunkSize   int `gorm:"not null"`
	EvalSamples int `gorm:"not null"`
	Seed        int64
	Alpha       float64

	AccumulatedSamples int `gorm:"default:0"`
	ChunksProcessed    int `gorm:"default:0"`
	TotalFeatures      int `gorm:"default:0"`

	ArtifactKey sql.NullString

	Evaluations []Evaluation `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
	Errors      []RunError   `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type Evaluation struct {
	RunId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Chunk int       `gorm:"primaryKey"`

	AccumulatedSamples int
	Sentences          int
	Tokens             int
	Correct            int
	Accuracy           float64
	Mismatches         datatypes.JSON `gorm:"type:jsonb"` // [{"token":"…","predicted":"…","expected":"…"},…]
	Timestamp          time.Time
}

type RunError struct {
	RunId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Error     string
	Timestamp time.Time
}
