package model

import (
	"fmt"

	"ledger-ner/internal/core/features"
	"ledger-ner/internal/core/types"
	"ledger-ner/internal/core/utils"
	"ledger-ner/internal/core/vectorizer"
	"ledger-ner/internal/lexicon"
)

// Transformer is the frozen half of the vectorizer used at inference time.
type Transformer interface {
	Transform(records []features.Record) (*vectorizer.Matrix, error)
}

type Predictor interface {
	Predict(X *vectorizer.Matrix) ([]string, error)
}

type TaggedToken struct {
	Text  string    `json:"text"`
	Start int       `json:"start"`
	End   int       `json:"end"`
	Tag   types.Tag `json:"tag"`
}

// Tagger assigns BIO tags to whitespace-tokenized text. It holds no mutable
// state and can be shared between goroutines.
type Tagger struct {
	extractor   *features.Extractor
	transformer Transformer
	predictor   Predictor
}

func NewTagger(catalog *lexicon.Catalog, transformer Transformer, predictor Predictor) *Tagger {
	return &Tagger{
		extractor:   features.NewExtractor(catalog),
		transformer: transformer,
		predictor:   predictor,
	}
}

func LoadTagger(doc *Document, catalog *lexicon.Catalog) (*Tagger, error) {
	vec, nb, err := doc.Restore()
	if err != nil {
		return nil, err
	}
	return NewTagger(catalog, vec, nb), nil
}

func (t *Tagger) TagTokens(tokens []string) ([]types.Tag, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	X, err := t.transformer.Transform(t.extractor.Sentence(tokens))
	if err != nil {
		return nil, fmt.Errorf("error vectorizing tokens: %w", err)
	}
	labels, err := t.predictor.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("error predicting tags: %w", err)
	}

	tags := make([]types.Tag, len(labels))
	for i, l := range labels {
		tags[i] = types.Tag(l)
	}
	return tags, nil
}

func (t *Tagger) Tag(text string) ([]TaggedToken, error) {
	return t.TagSpans(utils.Tokenize(text))
}

// TagSpans tags pre-split tokens, keeping their offsets.
func (t *Tagger) TagSpans(spans []utils.Span) ([]TaggedToken, error) {
	tags, err := t.TagTokens(utils.SpanTexts(spans))
	if err != nil {
		return nil, err
	}

	out := make([]TaggedToken, len(spans))
	for i, s := range spans {
		out[i] = TaggedToken{Text: s.Text, Start: s.Start, End: s.End, Tag: tags[i]}
	}
	return out, nil
}
