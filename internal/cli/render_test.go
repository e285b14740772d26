package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/reconcile"
	"github.com/Veraticus/fintrack/internal/repository"
)

func sampleTransactions() []model.Transaction {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []model.Transaction{
		{
			ID:        "0f8c1d2e-aaaa-bbbb-cccc-000000000001",
			UserID:    "user-1",
			Type:      model.TypeIncome,
			Amount:    decimal.RequireFromString("2500"),
			Currency:  "LKR",
			Category:  "Salary",
			CreatedAt: created,
			Synced:    true,
		},
		{
			ID:        "short",
			UserID:    "user-1",
			Type:      model.TypeExpense,
			Amount:    decimal.RequireFromString("12.5"),
			Currency:  "LKR",
			Category:  "Food",
			Note:      strings.Repeat("very long note ", 5),
			CreatedAt: created.Add(time.Hour),
		},
	}
}

func TestRenderTransactions(t *testing.T) {
	out := RenderTransactions(sampleTransactions())

	assert.Contains(t, out, "AMOUNT")
	assert.Contains(t, out, "+2500.00 LKR")
	assert.Contains(t, out, "-12.50 LKR")
	assert.Contains(t, out, "0f8c1d2e")
	assert.NotContains(t, out, "0f8c1d2e-aaaa")
	assert.Contains(t, out, "…")
	assert.Equal(t, 1, strings.Count(out, PendingIcon))
}

func TestRenderTransactions_Empty(t *testing.T) {
	assert.Contains(t, RenderTransactions(nil), "No transactions yet.")
}

func TestRenderTransaction(t *testing.T) {
	txn := sampleTransactions()[1]
	lat, lon := 6.9271, 79.8612
	txn.Latitude, txn.Longitude = &lat, &lon
	txn.Address = "Colombo"

	out := RenderTransaction(txn)

	assert.Contains(t, out, "Colombo")
	assert.Contains(t, out, "6.92710, 79.86120")
	assert.Contains(t, out, "pending")
}

func TestRenderSyncReport(t *testing.T) {
	t.Run("skipped", func(t *testing.T) {
		out := RenderSyncReport(&reconcile.Report{Skipped: "not signed in"})
		assert.Contains(t, out, "Sync skipped: not signed in")
	})

	t.Run("full cycle", func(t *testing.T) {
		out := RenderSyncReport(&reconcile.Report{
			Pushed:     3,
			PushFailed: 1,
			Inserted:   2,
			Updated:    4,
			Kept:       1,
			Duration:   1500 * time.Millisecond,
		})
		assert.Contains(t, out, "Pushed: 3")
		assert.Contains(t, out, "1 failed, still pending")
		assert.Contains(t, out, "2 new, 4 updated")
		assert.Contains(t, out, "1 kept local")
	})

	t.Run("offline", func(t *testing.T) {
		out := RenderSyncReport(&reconcile.Report{PushSkipped: true, PullSkipped: true})
		assert.Contains(t, out, "Push: skipped")
		assert.Contains(t, out, "Pull: skipped")
	})
}

func TestRenderSummary(t *testing.T) {
	t.Run("month with expenses", func(t *testing.T) {
		out := RenderSummary(&repository.Summary{
			Period:       repository.Month(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
			Income:       decimal.RequireFromString("1000"),
			Expense:      decimal.RequireFromString("520.25"),
			Balance:      decimal.RequireFromString("479.75"),
			ExpenseRatio: decimal.RequireFromString("0.5203"),
			ByCategory: []repository.CategoryTotal{
				{Category: "Food", Amount: decimal.RequireFromString("350")},
				{Category: "Transport", Amount: decimal.RequireFromString("170.25")},
			},
		})

		assert.Contains(t, out, "March 2024")
		assert.Contains(t, out, "+1000.00")
		assert.Contains(t, out, "-520.25")
		assert.Contains(t, out, "479.75")
		assert.Contains(t, out, "52% of income spent")
		assert.Equal(t, 12, strings.Count(out, "█"))
		assert.Contains(t, out, "Food")
		assert.Contains(t, out, "170.25")
	})

	t.Run("spending above income fills the bar", func(t *testing.T) {
		out := RenderSummary(&repository.Summary{
			Income:       decimal.RequireFromString("100"),
			Expense:      decimal.RequireFromString("150"),
			Balance:      decimal.RequireFromString("-50"),
			ExpenseRatio: decimal.RequireFromString("1.5"),
		})

		assert.Contains(t, out, "All time")
		assert.Contains(t, out, "150% of income spent")
		assert.Equal(t, barWidth, strings.Count(out, "█"))
		assert.Contains(t, out, "No expenses yet.")
	})
}

func TestRenderCategories(t *testing.T) {
	out := RenderCategories([]model.Category{{ID: "c1", Name: "Food", Type: model.TypeExpense}})
	assert.Contains(t, out, "Food")
	assert.Contains(t, out, "(expense)")
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "full yes", input: "YES\n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "empty", input: "\n", want: false},
		{name: "eof", input: "", want: false},
		{name: "no trailing newline", input: "yes", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			got, err := p.Confirm(context.Background(), "Delete?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Delete? [y/N]")
		})
	}
}

func TestPrompter_ConfirmCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader, _ := newBlockingReader()
	p := NewPrompter(reader, &bytes.Buffer{})

	_, err := p.Confirm(ctx, "Delete?")
	assert.ErrorIs(t, err, ErrInputCancelled)
}

type blockingReader struct {
	unblock chan struct{}
}

func newBlockingReader() (*blockingReader, func()) {
	r := &blockingReader{unblock: make(chan struct{})}
	return r, func() { close(r.unblock) }
}

func (r *blockingReader) Read(_ []byte) (int, error) {
	<-r.unblock
	return 0, nil
}

func TestSyncProgress(t *testing.T) {
	var out syncBuffer
	p := NewSyncProgress(&out)

	p.Update(reconcile.Progress{Phase: reconcile.PhasePush, Done: 1, Total: 2})
	p.Update(reconcile.Progress{Phase: reconcile.PhasePush, Done: 2, Total: 2})
	p.Update(reconcile.Progress{Phase: reconcile.PhasePull, Done: 1, Total: 1})
	p.Finish()
	p.Finish()

	s := out.String()
	assert.Contains(t, s, "Pushing changes")
	assert.Contains(t, s, "Pulling changes")
}
