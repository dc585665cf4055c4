package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"ledger-ner/internal/core/features"
	"ledger-ner/internal/core/naivebayes"
	"ledger-ner/internal/core/vectorizer"
)

type Meta struct {
	Version       string `json:"version"`
	TotalSamples  int    `json:"total_samples"`
	TotalFeatures int    `json:"total_features"`
	Schema        string `json:"schema"`
}

// Document is the portable form of a trained tagger. Any client that
// reproduces the feature schema can score tokens with it.
type Document struct {
	Classes        []string       `json:"classes"`
	ClassLogPrior  []float64      `json:"class_log_prior"`
	FeatureLogProb [][]float64    `json:"feature_log_prob"`
	Vocabulary     map[string]int `json:"vocabulary"`
	Meta           Meta           `json:"meta"`
}

func Build(vec *vectorizer.DictVectorizer, nb *naivebayes.MultinomialNB, totalSamples int, version string) (*Document, error) {
	if !vec.Fitted() || !nb.Fitted() {
		return nil, fmt.Errorf("model is not trained yet")
	}
	return &Document{
		Classes:        nb.Classes(),
		ClassLogPrior:  nb.ClassLogPrior(),
		FeatureLogProb: nb.FeatureLogProb(),
		Vocabulary:     vec.Vocabulary(),
		Meta: Meta{
			Version:       version,
			TotalSamples:  totalSamples,
			TotalFeatures: vec.Size(),
			Schema:        features.SchemaVersion,
		},
	}, nil
}

func (d *Document) Validate() error {
	if len(d.Classes) == 0 {
		return fmt.Errorf("model has no classes")
	}
	if len(d.ClassLogPrior) != len(d.Classes) {
		return fmt.Errorf("class_log_prior has %d entries for %d classes", len(d.ClassLogPrior), len(d.Classes))
	}
	if len(d.FeatureLogProb) != len(d.Classes) {
		return fmt.Errorf("feature_log_prob has %d rows for %d classes", len(d.FeatureLogProb), len(d.Classes))
	}
	for c, row := range d.FeatureLogProb {
		if len(row) != len(d.Vocabulary) {
			return fmt.Errorf("feature_log_prob row %d has %d columns, vocabulary has %d keys", c, len(row), len(d.Vocabulary))
		}
	}
	for _, p := range d.ClassLogPrior {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("class_log_prior contains a non-finite value")
		}
	}
	if d.Meta.Schema != "" && d.Meta.Schema != features.SchemaVersion {
		return fmt.Errorf("model uses feature schema %q, extractor provides %q", d.Meta.Schema, features.SchemaVersion)
	}
	return nil
}

func (d *Document) Write(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(d); err != nil {
		return fmt.Errorf("error encoding model: %w", err)
	}
	return nil
}

func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("error decoding model: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &doc, nil
}

// Restore rebuilds the vectorizer and classifier described by the document.
func (d *Document) Restore() (*vectorizer.DictVectorizer, *naivebayes.MultinomialNB, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}
	vec, err := vectorizer.FromVocabulary(d.Vocabulary)
	if err != nil {
		return nil, nil, err
	}
	nb, err := naivebayes.FromParameters(d.Classes, d.ClassLogPrior, d.FeatureLogProb)
	if err != nil {
		return nil, nil, err
	}
	return vec, nb, nil
}
