package datagen

import "math/rand"

const (
	typoProbability = 0.15
	minTypoLength   = 4
	typoVowels      = "aeiou"
)

type typoKind int

const (
	typoSwap typoKind = iota
	typoReplace
	typoDelete
)

// IntroduceTypo corrupts word with probability 0.15 by swapping two adjacent
// runes, replacing a rune with a vowel, or deleting a rune. Words shorter than
// four runes are returned unchanged without consuming randomness. The edit
// index is drawn from [0, len-2], so the last rune is never replaced or deleted.
func IntroduceTypo(r *rand.Rand, word string) string {
	runes := []rune(word)
	if len(runes) < minTypoLength || r.Float64() > typoProbability {
		return word
	}

	kind := typoKind(r.Intn(3))
	idx := r.Intn(len(runes) - 1)

	switch kind {
	case typoSwap:
		runes[idx], runes[idx+1] = runes[idx+1], runes[idx]
	case typoReplace:
		runes[idx] = rune(typoVowels[r.Intn(len(typoVowels))])
	case typoDelete:
		runes = append(runes[:idx], runes[idx+1:]...)
	}
	return string(runes)
}
