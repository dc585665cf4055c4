package features

import (
	"regexp"
	"strings"
	"unicode"

	"ledger-ner/internal/lexicon"
)

// SchemaVersion identifies the slot layout of Record. Exported models carry
// it so that a model is never paired with a different extractor.
const SchemaVersion = "v1"

const (
	BeginOfSentence = "__BOS__"
	EndOfSentence   = "__EOS__"
)

var (
	numericRegex   = regexp.MustCompile(`^\d+([,.]\d+)?$`)
	priceLikeRegex = regexp.MustCompile(`^rp|^\d+(rb|k|ribu|rebu|ribee|jt|juta)|^\d{1,3}(\.\d{3})+$`)
)

// Record holds the features of a single token. String slots become one-hot
// "name=value" columns after vectorization, int slots become a column "name"
// carrying the value.
type Record struct {
	Word          string
	IsNumeric     int
	IsPriceLike   int
	IsUnit        int
	Suffix1       string
	Suffix2       string
	Suffix3       string
	Prefix3       string
	Prefix2       string
	Prefix1       string
	IsCapitalized int
	HasDigit      int
	Length        int
	PrevWord      string
	NextWord      string
	PrevIsVerb    int
	PrevIsUnit    int
	NextIsUnit    int
	NextIsPrice   int
}

// Entry is one vectorizer input: a column key and the value it carries.
type Entry struct {
	Key   string
	Value float64
}

func str(name, value string) Entry {
	return Entry{Key: name + "=" + value, Value: 1}
}

func num(name string, value int) Entry {
	return Entry{Key: name, Value: float64(value)}
}

// Entries lists the record's columns in slot order. Every slot always emits
// an entry, so empty affixes produce keys such as "suffix_3=".
func (r Record) Entries() []Entry {
	return []Entry{
		str("word", r.Word),
		num("is_numeric", r.IsNumeric),
		num("is_price_like", r.IsPriceLike),
		num("is_unit", r.IsUnit),
		str("suffix_1", r.Suffix1),
		str("suffix_2", r.Suffix2),
		str("suffix_3", r.Suffix3),
		str("prefix_3", r.Prefix3),
		str("prefix_2", r.Prefix2),
		str("prefix_1", r.Prefix1),
		num("is_capitalized", r.IsCapitalized),
		num("has_digit", r.HasDigit),
		num("length", r.Length),
		str("prev_word", r.PrevWord),
		str("next_word", r.NextWord),
		num("prev_is_verb", r.PrevIsVerb),
		num("prev_is_unit", r.PrevIsUnit),
		num("next_is_unit", r.NextIsUnit),
		num("next_is_price_suffix", r.NextIsPrice),
	}
}

// Extractor computes token features against a lexicon. It is stateless
// apart from the catalog and safe for concurrent use.
type Extractor struct {
	catalog *lexicon.Catalog
}

func NewExtractor(catalog *lexicon.Catalog) *Extractor {
	return &Extractor{catalog: catalog}
}

// Extract computes the features of word. A nil prev or next marks the
// sentence boundary.
func (e *Extractor) Extract(word string, prev, next *string) Record {
	lower := strings.ToLower(word)
	runes := []rune(lower)
	n := len(runes)

	prevWord, nextWord := BeginOfSentence, EndOfSentence
	if prev != nil {
		prevWord = strings.ToLower(*prev)
	}
	if next != nil {
		nextWord = strings.ToLower(*next)
	}

	return Record{
		Word:          lower,
		IsNumeric:     flag(numericRegex.MatchString(lower)),
		IsPriceLike:   flag(priceLikeRegex.MatchString(lower)),
		IsUnit:        flag(e.catalog.IsUnit(lower)),
		Suffix1:       suffix(runes, 1),
		Suffix2:       affix(n > 1, func() string { return suffix(runes, 2) }),
		Suffix3:       affix(n > 2, func() string { return suffix(runes, 3) }),
		Prefix3:       affix(n > 2, func() string { return string(runes[:3]) }),
		Prefix2:       affix(n > 1, func() string { return string(runes[:2]) }),
		Prefix1:       affix(n > 0, func() string { return string(runes[:1]) }),
		IsCapitalized: flag(startsUpper(word)),
		HasDigit:      flag(strings.IndexFunc(word, unicode.IsDigit) >= 0),
		Length:        n,
		PrevWord:      prevWord,
		NextWord:      nextWord,
		PrevIsVerb:    flag(e.catalog.IsVerb(prevWord)),
		PrevIsUnit:    flag(e.catalog.IsUnit(prevWord)),
		NextIsUnit:    flag(e.catalog.IsUnit(nextWord)),
		NextIsPrice:   flag(e.catalog.IsMoneyFormat(nextWord)),
	}
}

// Sentence extracts features for every token with its neighbours.
func (e *Extractor) Sentence(tokens []string) []Record {
	out := make([]Record, len(tokens))
	for i := range tokens {
		var prev, next *string
		if i > 0 {
			prev = &tokens[i-1]
		}
		if i < len(tokens)-1 {
			next = &tokens[i+1]
		}
		out[i] = e.Extract(tokens[i], prev, next)
	}
	return out
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func suffix(runes []rune, k int) string {
	if k > len(runes) {
		k = len(runes)
	}
	return string(runes[len(runes)-k:])
}

func affix(ok bool, f func() string) string {
	if !ok {
		return ""
	}
	return f()
}

func startsUpper(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}
