package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/reconcile"
	"github.com/Veraticus/fintrack/internal/repository"
)

const (
	dateLayout = "2006-01-02 15:04"
	barWidth   = 24
)

// RenderTransactions renders transactions as a table, newest first as given.
// Unsynced rows carry a pending marker.
func RenderTransactions(txns []model.Transaction) string {
	if len(txns) == 0 {
		return SubtleStyle.Render("No transactions yet.")
	}

	headers := []string{"", "DATE", "TYPE", "AMOUNT", "CATEGORY", "NOTE", "ID"}
	rows := make([][]string, 0, len(txns))
	for _, txn := range txns {
		marker := " "
		if !txn.Synced {
			marker = PendingIcon
		}
		rows = append(rows, []string{
			marker,
			txn.CreatedAt.Local().Format(dateLayout),
			string(txn.Type),
			FormatAmount(txn),
			txn.Category,
			truncate(txn.Note, 32),
			shortID(txn.ID),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = TableCellStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(TableHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, headerCells...)))
	b.WriteString("\n")

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := TableCellStyle.Width(widths[i] + 2)
			switch {
			case i == 0:
				style = style.Inherit(PendingStyle)
			case i == 3 && txns[r].Type == model.TypeIncome:
				style = style.Foreground(IncomeColor)
			case i == 3:
				style = style.Foreground(ExpenseColor)
			case i == 6:
				style = style.Inherit(SubtleStyle)
			}
			cells[i] = style.Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatAmount renders a signed amount with its currency.
func FormatAmount(txn model.Transaction) string {
	sign := "-"
	if txn.Type == model.TypeIncome {
		sign = "+"
	}
	return fmt.Sprintf("%s%s %s", sign, txn.Amount.StringFixed(2), txn.Currency)
}

// RenderTransaction renders one transaction in detail.
func RenderTransaction(txn model.Transaction) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render(fmt.Sprintf("%-10s", label)), value)
	}

	line("ID", txn.ID)
	line("Type", string(txn.Type))
	line("Amount", FormatAmount(txn))
	line("Category", txn.Category)
	line("Note", txn.Note)
	line("Created", txn.CreatedAt.Local().Format(dateLayout))
	if txn.UpdatedAt != nil {
		line("Updated", txn.UpdatedAt.Local().Format(dateLayout))
	}
	line("Address", txn.Address)
	if txn.Latitude != nil && txn.Longitude != nil {
		line("Location", fmt.Sprintf("%.5f, %.5f", *txn.Latitude, *txn.Longitude))
	}
	line("Photo", txn.PhotoURI)
	if txn.Synced {
		line("Status", StyleSuccess("synced"))
	} else {
		line("Status", PendingStyle.Render("pending"))
	}

	return RenderBox("Transaction", strings.TrimRight(b.String(), "\n"))
}

// RenderCategories renders categories one per line.
func RenderCategories(categories []model.Category) string {
	if len(categories) == 0 {
		return SubtleStyle.Render("No categories.")
	}

	var b strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&b, "  %s %s\n", c.Name, SubtleStyle.Render("("+string(c.Type)+")"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderSyncReport summarizes a finished cycle.
func RenderSyncReport(report *reconcile.Report) string {
	if report.Skipped != "" {
		return FormatWarning("Sync skipped: " + report.Skipped)
	}

	var b strings.Builder
	if report.PushSkipped {
		b.WriteString("  • Push: skipped (offline)\n")
	} else {
		fmt.Fprintf(&b, "  • Pushed: %d", report.Pushed)
		if report.PushFailed > 0 {
			b.WriteString(StyleWarning(fmt.Sprintf(" (%d failed, still pending)", report.PushFailed)))
		}
		b.WriteString("\n")
	}
	if report.DeletesFlushed > 0 || report.DeletesFailed > 0 {
		fmt.Fprintf(&b, "  • Remote deletes: %d", report.DeletesFlushed)
		if report.DeletesFailed > 0 {
			b.WriteString(StyleWarning(fmt.Sprintf(" (%d failed)", report.DeletesFailed)))
		}
		b.WriteString("\n")
	}
	if report.PullSkipped {
		b.WriteString("  • Pull: skipped\n")
	} else {
		fmt.Fprintf(&b, "  • Pulled: %d new, %d updated", report.Inserted, report.Updated)
		if report.Kept > 0 {
			fmt.Fprintf(&b, ", %d kept local", report.Kept)
		}
		if report.PullFailed > 0 {
			b.WriteString(StyleWarning(fmt.Sprintf(", %d unusable", report.PullFailed)))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  • Took: %s", report.Duration.Round(time.Millisecond))

	return RenderBox(SyncIcon+" Sync Complete", b.String())
}

// RenderSummary renders income, expense and balance totals with the share of
// income spent and the expense total of each category.
func RenderSummary(summary *repository.Summary) string {
	var b strings.Builder

	b.WriteString(SubtitleStyle.Render(periodLabel(summary.Period)))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render(fmt.Sprintf("%-9s", "Income")),
		lipgloss.NewStyle().Foreground(IncomeColor).Render("+"+summary.Income.StringFixed(2)))
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render(fmt.Sprintf("%-9s", "Expenses")),
		lipgloss.NewStyle().Foreground(ExpenseColor).Render("-"+summary.Expense.StringFixed(2)))
	fmt.Fprintf(&b, "%s %s\n\n", BoldStyle.Render(fmt.Sprintf("%-9s", "Balance")), summary.Balance.StringFixed(2))

	percent := summary.ExpenseRatio.Shift(2).StringFixed(0)
	fmt.Fprintf(&b, "%s %s%% of income spent\n", ratioBar(summary), percent)

	b.WriteString("\n")
	if len(summary.ByCategory) == 0 {
		b.WriteString(SubtleStyle.Render("No expenses yet."))
	} else {
		b.WriteString(BoldStyle.Render("Expenses by category"))
		for _, c := range summary.ByCategory {
			fmt.Fprintf(&b, "\n  %-16s %s", truncate(c.Category, 16), c.Amount.StringFixed(2))
		}
	}

	return RenderBox(ChartIcon+" Summary", b.String())
}

func ratioBar(summary *repository.Summary) string {
	filled := int(summary.Progress().Mul(decimal.NewFromInt(barWidth)).Round(0).IntPart())
	style := ProgressStyle
	if summary.OverBudget() {
		style = ErrorStyle
	}
	return style.Render(strings.Repeat("█", filled)) + SubtleStyle.Render(strings.Repeat("░", barWidth-filled))
}

func periodLabel(p repository.Period) string {
	switch {
	case p.From.IsZero() && p.To.IsZero():
		return "All time"
	case !p.From.IsZero() && !p.To.IsZero() && p.From.AddDate(0, 1, 0).Equal(p.To) && p.From.Day() == 1:
		return p.From.Format("January 2006")
	case p.To.IsZero():
		return "Since " + p.From.Format("2006-01-02")
	case p.From.IsZero():
		return "Before " + p.To.Format("2006-01-02")
	default:
		return p.From.Format("2006-01-02") + " to " + p.To.Format("2006-01-02")
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
