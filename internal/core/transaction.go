package core

import (
	"fmt"
	"time"

	"ledger-ner/internal/core/model"
	"ledger-ner/internal/core/types"
	"ledger-ner/internal/lexicon"
)

// Transaction is the structured reading of one free-text ledger entry.
type Transaction struct {
	Text     string
	Tokens   []model.TaggedToken
	Entities []types.Entity
	Items    []LineItem
	Type     TransactionType
	Date     *time.Time
	Total    float64
}

// ParseTransaction tags text and derives line items, the transaction type
// and an optional date. now anchors dates written without a year.
func ParseTransaction(tagger *model.Tagger, catalog *lexicon.Catalog, text string, now time.Time) (Transaction, error) {
	tokens, err := tagger.TagSpans(SplitTokens(text))
	if err != nil {
		return Transaction{}, fmt.Errorf("error tagging text: %w", err)
	}

	tx := Transaction{
		Text:     text,
		Tokens:   tokens,
		Entities: ToEntities(text, tokens),
		Items:    ExtractLineItems(tokens, catalog),
		Type:     DetectTransactionType(text),
	}
	if date, ok := DetectDate(text, now); ok {
		tx.Date = &date
	}
	for _, item := range tx.Items {
		tx.Total += item.Total
	}
	return tx, nil
}
