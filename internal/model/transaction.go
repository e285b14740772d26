package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the fixed-width UTC layout used for persisted timestamps.
// Lexical order of formatted values equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DefaultCurrency is used when neither the caller nor configuration names one.
const DefaultCurrency = "LKR"

// TransactionType distinguishes money going out from money coming in.
type TransactionType string

const (
	// TypeExpense represents money spent.
	TypeExpense TransactionType = "expense"
	// TypeIncome represents money received.
	TypeIncome TransactionType = "income"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TypeExpense || t == TypeIncome
}

// ParseTransactionType converts user input to a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}

// Transaction is a single income or expense entry owned by one user.
// The same struct is the schema for both the local store and the remote store;
// each adapter maps it explicitly to its own representation.
type Transaction struct {
	CreatedAt time.Time
	UpdatedAt *time.Time
	Latitude  *float64
	Longitude *float64
	ID        string
	UserID    string
	Type      TransactionType
	Currency  string
	Category  string
	Note      string
	PhotoURI  string // local device path only, never uploaded as binary
	Address   string
	Amount    decimal.Decimal
	Deleted   bool
	Synced    bool
}

// Touched returns the last modification time, falling back to creation time.
func (t *Transaction) Touched() time.Time {
	if t.UpdatedAt != nil {
		return *t.UpdatedAt
	}
	return t.CreatedAt
}

// FormatTimestamp renders ts in TimestampLayout.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a persisted timestamp. RFC 3339 values written by
// other clients are accepted as well.
func ParseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(TimestampLayout, s)
	if err == nil {
		return ts, nil
	}
	ts, rfcErr := time.Parse(time.RFC3339Nano, s)
	if rfcErr != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}

// Now returns the current time truncated to the persisted precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
