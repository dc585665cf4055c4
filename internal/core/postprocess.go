package core

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"ledger-ner/internal/core/model"
	"ledger-ner/internal/core/types"
	"ledger-ner/internal/lexicon"
)

const (
	unnamedItem     = "Item Tanpa Nama"
	defaultCategory = "umum"
)

var (
	itemSeparators = map[string]bool{"dan": true, "lalu": true, "serta": true, ",": true, "+": true}

	slangAmounts = map[string]float64{
		"cepek":  100,
		"gopek":  500,
		"seceng": 1_000,
		"goceng": 5_000,
		"ceban":  10_000,
		"goban":  50_000,
	}

	// Money suffixes that may be written apart from their number, "3 jt".
	standaloneSuffixes = map[string]bool{
		"rb": true, "k": true, "ribu": true, "rebu": true, "ribee": true, "jt": true, "juta": true,
	}

	numberWords = map[string]int{
		"se": 1, "satu": 1, "dua": 2, "tiga": 3, "empat": 4, "lima": 5,
		"enam": 6, "tujuh": 7, "delapan": 8, "sembilan": 9, "sepuluh": 10,
	}

	amountRegex  = regexp.MustCompile(`^(?:rp\.?)?([\d.,]+)(rb|ribu|rebu|ribee|rebe|k|jt|juta)?$`)
	suffixedRegex = regexp.MustCompile(`[\d.,]+(rb|k|ribu|rebu|ribee|jt|juta)$`)
	decimalRegex = regexp.MustCompile(`^\d+[.,]\d{1,2}$`)
	digitsRegex  = regexp.MustCompile(`\d+`)
)

// ToEntities collapses BIO-tagged tokens into labeled spans of text. An I-
// tag that does not continue a span of the same label opens a new one.
func ToEntities(text string, tokens []model.TaggedToken) []types.Entity {
	var entities []types.Entity
	label, start, end := "", -1, -1

	flush := func() {
		if start >= 0 {
			entities = append(entities, types.CreateEntity(label, text, start, end))
		}
		label, start, end = "", -1, -1
	}

	for _, tok := range tokens {
		switch {
		case tok.Tag == types.Outside:
			flush()
		case tok.Tag.IsInside() && tok.Tag.Label() == label:
			end = tok.End
		default:
			flush()
			label, start, end = tok.Tag.Label(), tok.Start, tok.End
		}
	}
	flush()
	return entities
}

type LineItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

func multiplierFor(suffix string) float64 {
	switch suffix {
	case "jt", "juta":
		return 1_000_000
	case "rb", "ribu", "rebu", "ribee", "rebe", "k":
		return 1_000
	default:
		return 1
	}
}

// ParseAmount reads a money token such as "50rb", "1.5jt", "rp25.000" or
// "goceng". It returns 0 when the token carries no amount.
func ParseAmount(word string) float64 {
	w := strings.ToLower(strings.TrimSpace(word))
	if v, ok := slangAmounts[w]; ok {
		return v
	}

	m := amountRegex.FindStringSubmatch(w)
	if m == nil {
		return 0
	}
	number, mult := m[1], multiplierFor(m[2])

	if mult > 1 && decimalRegex.MatchString(number) {
		v, err := strconv.ParseFloat(strings.Replace(number, ",", ".", 1), 64)
		if err != nil {
			return 0
		}
		return math.Round(v * mult)
	}

	digits := strings.Join(digitsRegex.FindAllString(number, -1), "")
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	return v * mult
}

// ParseQuantity reads a quantity token, accepting digits ("12", "2kg") and
// small number words ("satu").
func ParseQuantity(word string) int {
	w := strings.ToLower(strings.TrimSpace(word))
	if v, ok := numberWords[w]; ok {
		return v
	}
	digits := digitsRegex.FindString(w)
	if digits == "" {
		return 0
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return v
}

type itemBuilder struct {
	catalog    *lexicon.Catalog
	items      []LineItem
	name       []string
	qty        int
	price      float64
	collecting bool

	// Last quantity and price seen anywhere in the text.
	lastQty   int
	lastPrice float64
}

func (b *itemBuilder) reset() {
	b.name, b.qty, b.price, b.collecting = nil, 1, 0, false
}

func newLineItem(catalog *lexicon.Catalog, name string, qty int, price float64) LineItem {
	category := catalog.CategoryOf(name)
	if name == "" {
		name = unnamedItem
	}
	if category == "" {
		category = defaultCategory
	}

	// The stated price is the total when more than one unit is bought.
	item := LineItem{Name: name, Category: category, Quantity: qty, Price: price}
	if qty > 1 && price > 0 {
		item.Total = price
		item.Price = price / float64(qty)
	} else {
		item.Total = price * float64(qty)
	}
	return item
}

func (b *itemBuilder) push() {
	if len(b.name) > 0 || b.price > 0 {
		b.items = append(b.items, newLineItem(b.catalog, strings.Join(b.name, " "), b.qty, b.price))
	}
	b.reset()
}

func (b *itemBuilder) update(label, word, next string) {
	switch label {
	case types.LabelItem:
		b.name = append(b.name, word)
	case types.LabelQty:
		if v := ParseQuantity(word); v > 0 {
			b.qty, b.lastQty = v, v
		}
	case types.LabelPrice:
		lower := strings.ToLower(word)
		amount := ParseAmount(lower)
		if standaloneSuffixes[next] && !suffixedRegex.MatchString(lower) {
			// "3 jt": the suffix arrives as its own token.
			amount = ParseAmount(lower + next)
		}
		if amount > 0 {
			b.price, b.lastPrice = amount, amount
		}
	}
}

func isNumber(word string) bool {
	return amountRegex.MatchString(word) && ParseAmount(word) > 0
}

// overrideNumericTags replaces the tags of numeric tokens with a rule-based
// reading: money-shaped numbers are prices, a number before a unit or below
// 50 is a quantity. Standalone money suffixes are always O. The input is not
// modified.
func overrideNumericTags(tokens []model.TaggedToken, catalog *lexicon.Catalog) []model.TaggedToken {
	out := make([]model.TaggedToken, len(tokens))
	copy(out, tokens)

	for i := range out {
		word := strings.ToLower(out[i].Text)
		next := ""
		if i+1 < len(out) {
			next = strings.ToLower(out[i+1].Text)
		}

		if standaloneSuffixes[word] {
			out[i].Tag = types.Outside
			continue
		}
		if !isNumber(word) {
			continue
		}

		switch {
		case suffixedRegex.MatchString(word),
			strings.Contains(word, ".") && len(word) > 4,
			standaloneSuffixes[next]:
			out[i].Tag = types.BeginPrice
		case catalog.IsUnit(next):
			out[i].Tag = types.BeginQty
		case ParseAmount(word) < 50 && !strings.HasPrefix(word, "0"):
			out[i].Tag = types.BeginQty
		default:
			out[i].Tag = types.BeginPrice
		}
	}
	return out
}

// isLeftover reports whether an O-tagged word could still name the item when
// the tagger found none.
func isLeftover(word string, catalog *lexicon.Catalog) bool {
	if !strings.ContainsFunc(word, unicode.IsLetter) || isNumber(word) || standaloneSuffixes[word] || itemSeparators[word] {
		return false
	}
	return !catalog.IsUnit(word) && !catalog.IsVerb(word) && !catalog.IsNoise(word)
}

// ExtractLineItems groups tagged tokens into transaction line items. Numeric
// tokens are re-tagged by rule first. List separators tagged O and every
// B-ITEM that follows a named item close the current item, so a price written
// before its item stays with it. When no item gets a name, the leftover O
// words become one item carrying the last quantity and price seen.
func ExtractLineItems(tokens []model.TaggedToken, catalog *lexicon.Catalog) []LineItem {
	tokens = overrideNumericTags(tokens, catalog)

	b := &itemBuilder{catalog: catalog, lastQty: 1}
	b.reset()

	var leftover []string
	for i, tok := range tokens {
		word := strings.ToLower(tok.Text)
		next := ""
		if i+1 < len(tokens) {
			next = strings.ToLower(tokens[i+1].Text)
		}

		if tok.Tag == types.Outside {
			if itemSeparators[word] {
				if b.collecting {
					b.push()
				}
			} else if isLeftover(word, catalog) {
				leftover = append(leftover, tok.Text)
			}
			continue
		}

		switch {
		case tok.Tag.IsBegin():
			if tok.Tag == types.BeginItem && b.collecting && len(b.name) > 0 {
				b.push()
			}
			b.collecting = true
			b.update(tok.Tag.Label(), tok.Text, next)
		case tok.Tag.IsInside():
			b.update(tok.Tag.Label(), tok.Text, next)
		}
	}
	b.push()

	if len(leftover) > 0 && !hasNamedItem(b.items) {
		return []LineItem{newLineItem(catalog, strings.Join(leftover, " "), b.lastQty, b.lastPrice)}
	}
	return b.items
}

func hasNamedItem(items []LineItem) bool {
	for _, item := range items {
		if item.Name != unnamedItem {
			return true
		}
	}
	return false
}

type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
	Unknown TransactionType = ""
)

var (
	incomeKeywords  = []string{"terjual", "laku", "masuk", "pendapatan", "jual", "dapat", "income"}
	expenseKeywords = []string{"beli", "belanja", "keluar", "bayar", "expense", "biaya"}
)

// DetectTransactionType matches keywords as substrings, so "dibeli" counts as
// an expense. Income keywords take precedence.
func DetectTransactionType(text string) TransactionType {
	lower := strings.ToLower(text)
	for _, k := range incomeKeywords {
		if strings.Contains(lower, k) {
			return Income
		}
	}
	for _, k := range expenseKeywords {
		if strings.Contains(lower, k) {
			return Expense
		}
	}
	return Unknown
}

var (
	dateRegex = regexp.MustCompile(`(?i)(\d{1,2})\s*(jan|feb|mar|apr|mei|jun|jul|agu|sep|okt|nov|des)[a-z]*\s*(\d{2,4})?`)

	monthIndex = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
		"mei": time.May, "jun": time.June, "jul": time.July, "agu": time.August,
		"sep": time.September, "okt": time.October, "nov": time.November, "des": time.December,
	}
)

// DetectDate finds an Indonesian day-month date such as "18 nov" or
// "3 agustus 24". A missing year defaults to the year of now.
func DetectDate(text string, now time.Time) (time.Time, bool) {
	m := dateRegex.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month := monthIndex[strings.ToLower(m[2])]

	year := now.Year()
	if m[3] != "" {
		y, err := strconv.Atoi(m[3])
		if err != nil {
			return time.Time{}, false
		}
		if len(m[3]) == 2 {
			y += 2000
		}
		year = y
	}
	if day > time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day() {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
}
