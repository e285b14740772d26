package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/fintrack/internal/app"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/repository"
)

func summaryCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expenses and spending by category",
		Long: `Show total income, total expenses and the balance, how much of your income
has been spent, and expenses grouped by category. Amounts in different
currencies are added together as recorded.`,
		Example: `  fintrack summary
  fintrack summary --month 2024-03
  fintrack summary --month current`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			period := repository.Period{}
			switch month {
			case "":
			case "current":
				period = repository.Month(time.Now())
			default:
				var err error
				if period, err = repository.ParseMonth(month, time.Local); err != nil {
					return friendly(err)
				}
			}

			return withApp(cmd, func(ctx context.Context, a *app.App, userID string) error {
				summary, err := a.Repository.Summary(ctx, userID, period)
				if err != nil {
					return fmt.Errorf("failed to summarize transactions: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSummary(summary))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&month, "month", "", `limit to one month, as YYYY-MM or "current"`)

	return cmd
}
