package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bmsj23/animomart-client/internal/api"
	"github.com/bmsj23/animomart-client/internal/collection"
	"github.com/bmsj23/animomart-client/internal/config"
	"github.com/bmsj23/animomart-client/internal/selection"
)

// app wires one command invocation: config, service client, selection store,
// and both collection stores. Commands are one-shot processes; anything
// debounced is flushed before the command returns.
type app struct {
	cfg    *config.Config
	client *api.Client
	sel    *selection.Store
	cart   *collection.Store
	wish   *collection.Store
	prices *priceFormatter
}

// newApp builds the full wiring from the root flags. Configuration and
// wiring failures are command errors, not mutation failures.
func newApp(opts *RootOptions) (*app, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
		cfg = loaded
	}

	client, err := api.New(api.Config{BaseURL: cfg.BaseURL, Token: cfg.Token})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "service client", err)
	}

	if dir := filepath.Dir(cfg.SelectionDB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "selection database", err)
		}
	}
	sel, err := selection.Open(cfg.SelectionDB, selection.DefaultCartKey)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "selection database", err)
	}

	prices, err := newPriceFormatter(cfg.Currency)
	if err != nil {
		sel.Close()
		return nil, WrapExitError(ExitCommandError, "price formatting", err)
	}

	owner := cfg.OwnerID
	if owner == "" {
		owner = "me"
	}

	a := &app{
		cfg:    cfg,
		client: client,
		sel:    sel,
		prices: prices,
	}
	a.cart = collection.New(collection.KindCart, owner, client.Cart(),
		collection.WithDebounceWindow(cfg.DebounceWindow()),
		collection.WithSelection(sel),
	)
	a.wish = collection.New(collection.KindWishlist, owner, client.Wishlist(),
		collection.WithCapacity(cfg.WishlistCapacity),
	)
	return a, nil
}

// Close releases the selection database.
func (a *app) Close() error {
	return a.sel.Close()
}

// formatter builds the output formatter for one command.
func (a *app) formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

