// Package remote provides adapters for the per-user remote transaction collection.
package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/fintrack/internal/model"
)

// Document is the wire form of a transaction in the remote collection.
// Field names match the local column names. The local-only synced flag is
// never sent.
type Document struct {
	Currency  *string  `json:"currency"`
	Category  *string  `json:"category"`
	Note      *string  `json:"note"`
	UpdatedAt *string  `json:"updated_at"`
	PhotoURI  *string  `json:"photo_uri"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   *string  `json:"address"`
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Type      string   `json:"type"`
	CreatedAt string   `json:"created_at"`
	Amount    float64  `json:"amount"`
	Deleted   int      `json:"deleted"`
}

// FromModel maps a transaction to its remote document.
func FromModel(txn model.Transaction) Document {
	doc := Document{
		ID:        txn.ID,
		UserID:    txn.UserID,
		Type:      string(txn.Type),
		Amount:    txn.Amount.InexactFloat64(),
		Currency:  optString(txn.Currency),
		Category:  optString(txn.Category),
		Note:      optString(txn.Note),
		CreatedAt: model.FormatTimestamp(txn.CreatedAt),
		PhotoURI:  optString(txn.PhotoURI),
		Latitude:  txn.Latitude,
		Longitude: txn.Longitude,
		Address:   optString(txn.Address),
	}
	if txn.UpdatedAt != nil {
		ts := model.FormatTimestamp(*txn.UpdatedAt)
		doc.UpdatedAt = &ts
	}
	if txn.Deleted {
		doc.Deleted = 1
	}
	return doc
}

// ToModel maps a remote document back to a transaction. The result is never
// marked synced; that is the local store's decision.
func (d Document) ToModel() (model.Transaction, error) {
	if strings.TrimSpace(d.ID) == "" {
		return model.Transaction{}, fmt.Errorf("document without id")
	}

	txnType, err := model.ParseTransactionType(d.Type)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("document %s: %w", d.ID, err)
	}
	if d.Amount < 0 {
		return model.Transaction{}, fmt.Errorf("document %s: negative amount %v", d.ID, d.Amount)
	}

	createdAt, err := model.ParseTimestamp(d.CreatedAt)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("document %s: %w", d.ID, err)
	}

	txn := model.Transaction{
		ID:        d.ID,
		UserID:    d.UserID,
		Type:      txnType,
		Amount:    decimal.NewFromFloat(d.Amount),
		Currency:  deref(d.Currency),
		Category:  deref(d.Category),
		Note:      deref(d.Note),
		CreatedAt: createdAt,
		Deleted:   d.Deleted != 0,
		PhotoURI:  deref(d.PhotoURI),
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Address:   deref(d.Address),
	}

	if d.UpdatedAt != nil && *d.UpdatedAt != "" {
		var updatedAt time.Time
		updatedAt, err = model.ParseTimestamp(*d.UpdatedAt)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("document %s: %w", d.ID, err)
		}
		txn.UpdatedAt = &updatedAt
	}

	return txn, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
