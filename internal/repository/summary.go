package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

// Period bounds a summary to [From, To). A zero bound is open.
type Period struct {
	From time.Time
	To   time.Time
}

// Month returns the calendar month containing t, in t's location.
func Month(t time.Time) Period {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Period{From: from, To: from.AddDate(0, 1, 0)}
}

// ParseMonth parses a YYYY-MM month in loc.
func ParseMonth(s string, loc *time.Location) (Period, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc)
	if err != nil {
		return Period{}, common.NewValidationError("month",
			fmt.Errorf("%w: expected YYYY-MM, got %q", common.ErrInvalidInput, s))
	}
	return Month(t), nil
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	if !p.From.IsZero() && t.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && !t.Before(p.To) {
		return false
	}
	return true
}

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// Summary totals a user's transactions. Amounts of all currencies are added
// together as entered.
type Summary struct {
	Period       Period
	Income       decimal.Decimal
	Expense      decimal.Decimal
	Balance      decimal.Decimal
	ExpenseRatio decimal.Decimal
	ByCategory   []CategoryTotal
	Count        int
}

// RatioWarning is the expense ratio above which spending is flagged.
var RatioWarning = decimal.RequireFromString("0.7")

// Progress returns the expense ratio capped at 1.
func (s *Summary) Progress() decimal.Decimal {
	return decimal.Min(s.ExpenseRatio, decimal.NewFromInt(1))
}

// OverBudget reports whether expenses exceed the warning share of income.
func (s *Summary) OverBudget() bool {
	return s.ExpenseRatio.GreaterThan(RatioWarning)
}

// Summary totals the user's non-deleted transactions created within period.
// ExpenseRatio is expense/income rounded to four places, or zero without
// income. ByCategory lists expenses only, largest first.
func (r *Repository) Summary(ctx context.Context, userID string, period Period) (*Summary, error) {
	txns, err := r.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := summarize(txns, period)
	summary.Period = period
	return summary, nil
}

func summarize(txns []model.Transaction, period Period) *Summary {
	s := &Summary{}
	byCategory := make(map[string]decimal.Decimal)

	for _, txn := range txns {
		if !period.Contains(txn.CreatedAt) {
			continue
		}
		s.Count++

		switch txn.Type {
		case model.TypeIncome:
			s.Income = s.Income.Add(txn.Amount)
		case model.TypeExpense:
			s.Expense = s.Expense.Add(txn.Amount)
			category := strings.TrimSpace(txn.Category)
			if category == "" {
				category = DefaultCategory
			}
			byCategory[category] = byCategory[category].Add(txn.Amount)
		}
	}

	s.Balance = s.Income.Sub(s.Expense)
	if s.Income.IsPositive() {
		s.ExpenseRatio = s.Expense.DivRound(s.Income, 4)
	}

	s.ByCategory = make([]CategoryTotal, 0, len(byCategory))
	for category, amount := range byCategory {
		s.ByCategory = append(s.ByCategory, CategoryTotal{Category: category, Amount: amount})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})

	return s
}
