package datagen

import (
	"math/rand"
	"strconv"
	"strings"

	"ledger-ner/internal/core/types"
	"ledger-ner/internal/lexicon"
)

const numPatterns = 10

// Generator produces labeled transaction sentences from a lexicon catalog.
// All randomness comes from the *rand.Rand it owns, so two generators built
// with the same seed and catalog emit the same sentences.
type Generator struct {
	rng     *rand.Rand
	catalog *lexicon.Catalog
}

func NewGenerator(catalog *lexicon.Catalog, rng *rand.Rand) *Generator {
	return &Generator{rng: rng, catalog: catalog}
}

func NewSeededGenerator(catalog *lexicon.Catalog, seed int64) *Generator {
	return NewGenerator(catalog, rand.New(rand.NewSource(seed)))
}

func (g *Generator) choice(words []string) string {
	return words[g.rng.Intn(len(words))]
}

// Sentence draws one sentence. The draw order (verb, item, unit, quantity,
// price, noise, pattern) is fixed; patterns 3 and 8 make extra draws after it.
func (g *Generator) Sentence() types.Sentence {
	verb := g.choice(g.catalog.Verbs())
	item := IntroduceTypo(g.rng, g.choice(g.catalog.Items()))
	unit := g.choice(g.catalog.Units())
	qty := strconv.Itoa(1 + g.rng.Intn(50))
	price := GeneratePrice(g.rng, g.catalog.MoneyFormats())
	noise := g.choice(g.catalog.Noise())
	pattern := g.rng.Intn(numPatterns)

	b := &sentenceBuilder{}

	switch pattern {
	case 0:
		b.add(verb, "O")
		b.add(qty, types.LabelQty)
		b.add(unit, types.LabelQty)
		b.add(item, types.LabelItem)
	case 1:
		b.add(item, types.LabelItem)
		b.add(qty, types.LabelQty)
		b.add(unit, types.LabelQty)
		b.add(price, types.LabelPrice)
	case 2:
		b.add(price, types.LabelPrice)
		b.add(item, types.LabelItem)
		b.add(qty, types.LabelQty)
		b.add(unit, types.LabelQty)
	case 3:
		b.add(noise, "O")
		b.add(verb, "O")
		b.add(item, types.LabelItem)
		b.add(qty, types.LabelQty)
		b.add(g.choice(g.catalog.Noise()), "O")
	case 4:
		b.add(verb, "O")
		b.add(item, types.LabelItem)
		b.add(qty, types.LabelQty)
		b.add(price, types.LabelPrice)
	case 5:
		b.add("satu", types.LabelQty)
		b.add(unit, types.LabelQty)
		b.add(item, types.LabelItem)
	case 6:
		b.add(verb, "O")
		b.add(item, types.LabelItem)
		b.add("seharga", "O")
		b.add(price, types.LabelPrice)
	case 7:
		b.add(verb, "O")
		b.add(item, types.LabelItem)
		b.add(price, types.LabelPrice)
	case 8:
		b.add(noise, "O")
		b.add(g.choice(g.catalog.Verbs()), "O")
		b.add(g.choice(g.catalog.Noise()), "O")
	case 9:
		b.add(item, types.LabelItem)
	}

	return types.Sentence{Tokens: b.tokens, Tags: b.tags}
}

// Chunk draws n sentences.
func (g *Generator) Chunk(n int) []types.Sentence {
	out := make([]types.Sentence, n)
	for i := range out {
		out[i] = g.Sentence()
	}
	return out
}

type sentenceBuilder struct {
	tokens []string
	tags   []types.Tag
}

// add splits text on whitespace and tags each piece. Punctuation pieces and
// the "O" label are tagged O. A piece continues the current span (I-) when the
// previous tag ends with the same label, otherwise it begins one (B-).
//
// The continuation check looks only at the previous tag, so two adjacent
// phrases with the same label merge into one span. "qty unit" becomes
// B-QTY I-QTY, which is intended, but two separate items back to back would
// also merge. Models trained on this data inherit that behaviour.
func (b *sentenceBuilder) add(text string, label string) {
	for _, piece := range strings.Fields(text) {
		var tag types.Tag
		switch {
		case label == "O" || piece == "." || piece == ",":
			tag = types.Outside
		case len(b.tags) == 0 || !strings.HasSuffix(string(b.tags[len(b.tags)-1]), label):
			tag = types.Tag("B-" + label)
		default:
			tag = types.Tag("I-" + label)
		}
		b.tokens = append(b.tokens, piece)
		b.tags = append(b.tags, tag)
	}
}
