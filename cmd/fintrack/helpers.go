package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/fintrack/internal/app"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/config"
)

// appOptions is applied to every App the commands open. Tests use it to
// substitute the remote store.
var appOptions app.Options

// openApp loads the configuration and opens the application, migrating the
// database if needed.
func openApp(ctx context.Context, opts app.Options) (*app.App, *config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	if opts.Remote == nil {
		opts.Remote = appOptions.Remote
	}
	if opts.Probe == nil {
		opts.Probe = appOptions.Probe
	}

	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return a, cfg, nil
}

// withApp opens the application, resolves the current user and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, userID string) error) error {
	ctx := cmd.Context()

	a, _, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	userID, err := a.UserID(ctx)
	if err != nil {
		return common.NewUserError("Not signed in. Set user.id in the config or pass --user.", err)
	}

	return friendly(fn(ctx, a, userID))
}

// friendly turns errors the user can act on into UserErrors.
func friendly(err error) error {
	if err == nil {
		return nil
	}

	var validationErr *common.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return common.NewUserError(fmt.Sprintf("Invalid %s.", validationErr.Field), err)
	case errors.Is(err, common.ErrNotFound):
		return common.NewUserError("Transaction not found.", err)
	case errors.Is(err, common.ErrMissingConfig):
		return common.NewUserError("Remote store not configured. Set remote.url and remote.key.", err)
	default:
		return err
	}
}

func parseAmount(s string) (*decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return nil, common.NewValidationError("amount", fmt.Errorf("%w: %q is not a number", common.ErrInvalidInput, s))
	}
	return &amount, nil
}

func parseCoordinate(field, s string) (*float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, common.NewValidationError(field, fmt.Errorf("%w: %q is not a number", common.ErrInvalidInput, s))
	}
	return &f, nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}
