package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/fintrack/internal/app"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
		Long:  `List and add the categories offered when recording transactions.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, _, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			categories, err := a.Store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderCategories(categories))
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var categoryType string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])

			typ, err := model.ParseTransactionType(categoryType)
			if err != nil {
				return common.NewUserError("Category type must be expense or income.", err)
			}

			ctx := cmd.Context()
			a, _, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			category := &model.Category{
				ID:   categoryID(typ, name),
				Name: name,
				Type: typ,
			}
			if err := a.Store.CreateCategory(ctx, category); err != nil {
				if errors.Is(err, common.ErrDuplicateEntry) {
					return common.NewUserError(fmt.Sprintf("Category %q already exists.", name), err)
				}
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created category %q", category.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&categoryType, "type", string(model.TypeExpense), "category type (expense, income)")

	return cmd
}

func categoryID(typ model.TransactionType, name string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	return string(typ) + "-" + slug
}

