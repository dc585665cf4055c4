package vectorizer

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"

	"ledger-ner/internal/core/features"
)

var (
	ErrAlreadyFitted = errors.New("vectorizer vocabulary is already fitted")
	ErrNotFitted     = errors.New("vectorizer vocabulary is not fitted")
)

// DictVectorizer maps feature records to sparse rows. The vocabulary is
// built once by FitTransform and never changes afterwards; Transform drops
// keys it has not seen.
type DictVectorizer struct {
	vocabulary map[string]int
}

func New() *DictVectorizer {
	return &DictVectorizer{}
}

// FromVocabulary restores a fitted vectorizer. Indices must be a permutation
// of 0..len(vocabulary)-1.
func FromVocabulary(vocabulary map[string]int) (*DictVectorizer, error) {
	seen := make([]bool, len(vocabulary))
	for key, idx := range vocabulary {
		if idx < 0 || idx >= len(vocabulary) || seen[idx] {
			return nil, fmt.Errorf("invalid vocabulary index %d for key %q", idx, key)
		}
		seen[idx] = true
	}
	return &DictVectorizer{vocabulary: maps.Clone(vocabulary)}, nil
}

func (v *DictVectorizer) Fitted() bool {
	return v.vocabulary != nil
}

func (v *DictVectorizer) Size() int {
	return len(v.vocabulary)
}

// Vocabulary returns a copy of the key to column mapping.
func (v *DictVectorizer) Vocabulary() map[string]int {
	return maps.Clone(v.vocabulary)
}

// FitTransform builds the vocabulary from records, with keys sorted
// lexicographically, and returns their matrix.
func (v *DictVectorizer) FitTransform(records []features.Record) (*Matrix, error) {
	if v.Fitted() {
		return nil, ErrAlreadyFitted
	}

	keys := make(map[string]struct{})
	for _, r := range records {
		for _, e := range r.Entries() {
			keys[e.Key] = struct{}{}
		}
	}

	sorted := slices.Sorted(maps.Keys(keys))
	v.vocabulary = make(map[string]int, len(sorted))
	for i, k := range sorted {
		v.vocabulary[k] = i
	}

	return v.Transform(records)
}

func (v *DictVectorizer) Transform(records []features.Record) (*Matrix, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}

	m := newMatrix(len(v.vocabulary), len(records))
	cells := make([]cell, 0, 32)
	indices := make([]int, 0, 32)
	data := make([]float64, 0, 32)

	for _, r := range records {
		cells = cells[:0]
		for _, e := range r.Entries() {
			idx, ok := v.vocabulary[e.Key]
			if !ok || e.Value == 0 {
				continue
			}
			cells = append(cells, cell{idx, e.Value})
		}
		sort.Slice(cells, func(i, j int) bool { return cells[i].idx < cells[j].idx })

		indices, data = indices[:0], data[:0]
		for _, c := range cells {
			indices = append(indices, c.idx)
			data = append(data, c.value)
		}
		m.appendRow(indices, data)
	}

	return m, nil
}

type cell struct {
	idx   int
	value float64
}
