package utils

import (
	"regexp"
)

var charRegex = regexp.MustCompile(`\S+`)

// Span is a whitespace-delimited token with its byte offsets in the source text.
type Span struct {
	Text  string
	Start int
	End   int
}

// Tokenize splits text on whitespace. We cannot use strings.Fields because
// entity offsets have to point back into the original text.
func Tokenize(text string) []Span {
	idxs := charRegex.FindAllStringIndex(text, -1)
	spans := make([]Span, len(idxs))
	for i, idx := range idxs {
		spans[i] = Span{Text: text[idx[0]:idx[1]], Start: idx[0], End: idx[1]}
	}
	return spans
}

func SpanTexts(spans []Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}
