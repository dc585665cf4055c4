package core

import (
	"strings"

	"ledger-ner/internal/core/utils"
)

const splitPunct = ",;+"

// SplitTokens tokenizes text on whitespace and detaches trailing list
// punctuation, so "kopi, gula" yields "kopi" "," "gula". Every span keeps
// its offsets into text.
func SplitTokens(text string) []utils.Span {
	spans := utils.Tokenize(text)
	out := make([]utils.Span, 0, len(spans))

	for _, s := range spans {
		word := strings.TrimRight(s.Text, splitPunct)
		if word == "" || word == s.Text {
			out = append(out, s)
			continue
		}

		out = append(out, utils.Span{Text: word, Start: s.Start, End: s.Start + len(word)})
		for i := s.Start + len(word); i < s.End; i++ {
			out = append(out, utils.Span{Text: text[i : i+1], Start: i, End: i + 1})
		}
	}
	return out
}
