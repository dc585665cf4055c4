package types

import "strings"

type Tag string

const (
	Outside     Tag = "O"
	BeginItem   Tag = "B-ITEM"
	InsideItem  Tag = "I-ITEM"
	BeginQty    Tag = "B-QTY"
	InsideQty   Tag = "I-QTY"
	BeginPrice  Tag = "B-PRICE"
	InsidePrice Tag = "I-PRICE"
)

// Entity labels carried by B-/I- tags.
const (
	LabelItem  = "ITEM"
	LabelQty   = "QTY"
	LabelPrice = "PRICE"
)

// AllTags is the fixed class set in the classifier's column order.
var AllTags = []Tag{BeginItem, BeginPrice, BeginQty, InsideItem, InsidePrice, InsideQty, Outside}

func (t Tag) IsBegin() bool  { return strings.HasPrefix(string(t), "B-") }
func (t Tag) IsInside() bool { return strings.HasPrefix(string(t), "I-") }

// Label strips the B-/I- prefix. It returns "" for O.
func (t Tag) Label() string {
	if t.IsBegin() || t.IsInside() {
		return string(t[2:])
	}
	return ""
}

func ParseTag(s string) (Tag, bool) {
	for _, t := range AllTags {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Sentence is a tokenized sentence with one tag per token.
type Sentence struct {
	Tokens []string
	Tags   []Tag
}

func (s *Sentence) Len() int { return len(s.Tokens) }
