package datagen

import (
	"fmt"
	"math/rand"
)

var priceValues = []int{1, 2, 5, 10, 15, 20, 50, 100}

type priceStyle int

const (
	styleDefault priceStyle = iota
	styleSuffix
	styleMillions
	styleSlang
)

var priceStyles = map[string]priceStyle{
	"rb":    styleSuffix,
	"k":     styleSuffix,
	"ribu":  styleSuffix,
	"rebu":  styleSuffix,
	"ribee": styleSuffix,
	"000":   styleSuffix,
	".000":  styleSuffix,

	"jt":   styleMillions,
	"juta": styleMillions,

	"cepek":  styleSlang,
	"gopek":  styleSlang,
	"seceng": styleSlang,
	"goceng": styleSlang,
	"ceban":  styleSlang,
	"goban":  styleSlang,
}

// GeneratePrice renders a random price string. Millions come out as two
// whitespace-separated tokens ("3 jt"); every other style is a single token.
func GeneratePrice(r *rand.Rand, formats []string) string {
	val := priceValues[r.Intn(len(priceValues))]
	format := formats[r.Intn(len(formats))]

	switch priceStyles[format] {
	case styleSuffix:
		return fmt.Sprintf("%d%s", val, format)
	case styleMillions:
		return fmt.Sprintf("%d %s", 1+r.Intn(5), format)
	case styleSlang:
		return format
	default:
		return fmt.Sprintf("%d000", val)
	}
}
