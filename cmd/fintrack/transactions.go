package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Veraticus/fintrack/internal/app"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/repository"
)

// addFieldFlags registers the editable transaction fields on flags.
func addFieldFlags(flags *pflag.FlagSet) {
	flags.String("type", string(model.TypeExpense), "transaction type (expense, income)")
	flags.String("amount", "", "amount, e.g. 1250.50")
	flags.String("currency", "", "ISO currency code (default from defaults.currency)")
	flags.String("category", "", "category name")
	flags.String("note", "", "free-form note")
	flags.String("photo", "", "URI of a receipt photo")
	flags.String("lat", "", "latitude")
	flags.String("lon", "", "longitude")
	flags.String("address", "", "human-readable location")
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new transaction",
		Long: `Record an income or expense locally. The transaction is pushed to the
remote store on the next sync.`,
		Example: `  fintrack add --amount 1250 --category Food --note "rice and curry"
  fintrack add --type income --amount 150000 --category Salary`,
		Args: cobra.NoArgs,
		RunE: runAdd,
	}

	addFieldFlags(cmd.Flags())
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	typ, _ := flags.GetString("type")
	amountStr, _ := flags.GetString("amount")
	currency, _ := flags.GetString("currency")
	category, _ := flags.GetString("category")
	note, _ := flags.GetString("note")
	photo, _ := flags.GetString("photo")
	address, _ := flags.GetString("address")

	return withApp(cmd, func(ctx context.Context, a *app.App, userID string) error {
		amount, err := parseAmount(amountStr)
		if err != nil {
			return err
		}

		draft := repository.Draft{
			UserID:   userID,
			Type:     model.TransactionType(typ),
			Amount:   amount,
			Currency: currency,
			Category: category,
			Note:     note,
			PhotoURI: photo,
			Address:  address,
		}
		if draft.Latitude, draft.Longitude, err = coordinates(flags); err != nil {
			return err
		}

		txn, err := a.Repository.Create(ctx, draft)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Recorded %s %s (%s)", txn.Type, cli.FormatAmount(*txn), txn.ID)))
		return nil
	})
}

func coordinates(flags *pflag.FlagSet) (*float64, *float64, error) {
	var lat, lon *float64
	if flags.Changed("lat") {
		s, _ := flags.GetString("lat")
		v, err := parseCoordinate("latitude", s)
		if err != nil {
			return nil, nil, err
		}
		lat = v
	}
	if flags.Changed("lon") {
		s, _ := flags.GetString("lon")
		v, err := parseCoordinate("longitude", s)
		if err != nil {
			return nil, nil, err
		}
		lon = v
	}
	return lat, lon, nil
}

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a transaction",
		Long: `Change one or more fields of a transaction. Only the flags you pass are
changed. The transaction becomes pending until the next sync.`,
		Example: `  fintrack edit 3f2a... --amount 990 --note "split with a friend"`,
		Args:    cobra.ExactArgs(1),
		RunE:    runEdit,
	}

	addFieldFlags(cmd.Flags())

	return cmd
}

func runEdit(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	return withApp(cmd, func(ctx context.Context, a *app.App, userID string) error {
		var patch repository.Patch
		changed := false
		stringField := func(name string, dst **string) {
			if flags.Changed(name) {
				v, _ := flags.GetString(name)
				*dst = &v
				changed = true
			}
		}

		if flags.Changed("type") {
			v, _ := flags.GetString("type")
			typ := model.TransactionType(v)
			patch.Type = &typ
			changed = true
		}
		if flags.Changed("amount") {
			v, _ := flags.GetString("amount")
			amount, err := parseAmount(v)
			if err != nil {
				return err
			}
			patch.Amount = amount
			changed = true
		}
		stringField("currency", &patch.Currency)
		stringField("category", &patch.Category)
		stringField("note", &patch.Note)
		stringField("photo", &patch.PhotoURI)
		stringField("address", &patch.Address)

		lat, lon, err := coordinates(flags)
		if err != nil {
			return err
		}
		if lat != nil || lon != nil {
			patch.Latitude, patch.Longitude = lat, lon
			changed = true
		}

		if !changed {
			return fmt.Errorf("nothing to change: pass at least one field flag")
		}

		txn, err := a.Repository.Update(ctx, userID, args[0], patch)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated "+txn.ID))
		return nil
	})
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, userID string) error {
				txn, err := a.Repository.Get(ctx, userID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTransaction(*txn))
				return nil
			})
		},
	}
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Long: `List your transactions, newest first. Rows marked with ` + cli.PendingIcon + ` have
not been pushed to the remote store yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, userID string) error {
				txns, err := a.Repository.List(ctx, userID)
				if err != nil {
					return fmt.Errorf("failed to list transactions: %w", err)
				}
				if limit > 0 && len(txns) > limit {
					txns = txns[:limit]
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTransactions(txns))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many transactions (0 for all)")

	return cmd
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show how many changes await a sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, userID string) error {
				count, err := a.Repository.CountPending(ctx, userID)
				if err != nil {
					return fmt.Errorf("failed to count pending transactions: %w", err)
				}

				out := cmd.OutOrStdout()
				if count == 0 {
					fmt.Fprintln(out, cli.FormatSuccess("Everything is synced"))
					return nil
				}
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d pending", count)))
				return nil
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Long: `Delete a transaction from this device immediately and from the remote
store as soon as it can be reached.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, userID string) error {
				id := args[0]

				if !yes {
					txn, err := a.Repository.Get(ctx, userID, id)
					if err != nil {
						return err
					}

					out := cmd.OutOrStdout()
					fmt.Fprintln(out, cli.RenderTransaction(*txn))
					ok, err := cli.NewPrompter(cmd.InOrStdin(), out).Confirm(ctx, "Delete this transaction?")
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, cli.FormatInfo("Kept"))
						return nil
					}
				}

				if err := a.Repository.Delete(ctx, userID, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+id))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
