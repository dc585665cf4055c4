package api

import (
	"time"

	"github.com/google/uuid"
)

type TrainRequest struct {
	Name        string
	MaxSamples  int
	ChunkSize   int
	EvalSamples int
	Seed        *int64 `json:"Seed,omitempty"`
	Alpha       float64
}

type TrainResponse struct {
	RunId uuid.UUID
}

type ListRunsParams struct {
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
}

type Mismatch struct {
	Token     string `json:"token"`
	Predicted string `json:"predicted"`
	Expected  string `json:"expected"`
}

type Evaluation struct {
	Chunk              int
	AccumulatedSamples int
	Sentences          int
	Tokens             int
	Correct            int
	Accuracy           float64
	Mismatches         []Mismatch
	Timestamp          time.Time
}

type RunError struct {
	Error     string
	Timestamp time.Time
}

type Run struct {
	Id     uuid.UUID
	Name   string
	Status string

	MaxSamples  int
	ChunkSize   int
	EvalSamples int
	Seed        int64
	Alpha       float64

	AccumulatedSamples int
	ChunksProcessed    int
	TotalFeatures      int

	CreationTime   time.Time
	StartTime      *time.Time `json:"StartTime,omitempty"`
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`

	Evaluations []Evaluation `json:"Evaluations,omitempty"`
	Errors      []RunError   `json:"Errors,omitempty"`
}

type TagRequest struct {
	Text  string   `json:"Text,omitempty"`
	Texts []string `json:"Texts,omitempty"`
}

type Token struct {
	Text  string
	Start int
	End   int
	Tag   string
}

type Entity struct {
	Label    string
	Text     string
	Start    int
	End      int
	LContext string
	RContext string
}

type LineItem struct {
	Name     string
	Category string
	Quantity int
	Price    float64
	Total    float64
}

type TagResult struct {
	Text            string
	Tokens          []Token
	Entities        []Entity
	Items           []LineItem
	TransactionType string
	Date            *time.Time `json:"Date,omitempty"`
	Total           float64
}

type TagResponse struct {
	Results []TagResult
}
