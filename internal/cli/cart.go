package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCartCommand creates the cart command tree.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the shopping cart",
	}

	cmd.AddCommand(newCartListCommand(rootOpts))
	cmd.AddCommand(newCartAddCommand(rootOpts))
	cmd.AddCommand(newCartSetCommand(rootOpts))
	cmd.AddCommand(newCartRmCommand(rootOpts))
	cmd.AddCommand(newCartClearCommand(rootOpts))
	cmd.AddCommand(newCartSelectCommand(rootOpts))
	cmd.AddCommand(newCartSummaryCommand(rootOpts))
	cmd.AddCommand(newCartGroupedCommand(rootOpts))
	cmd.AddCommand(newCartDiagCommand(rootOpts))

	return cmd
}

func newCartListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "Show the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.cart.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				return a.renderItems(f, a.cart, true)
			})
		},
	}
}

func newCartAddCommand(rootOpts *RootOptions) *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:           "add <product-id>",
		Short:         "Add a product to the cart",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.cart.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				if err := a.cart.Add(ctx, args[0], qty); err != nil {
					return mutationFailure(f, err)
				}
				return a.renderItems(f, a.cart, true)
			})
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 1, "quantity to add")
	return cmd
}

func newCartSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set <product-id> <quantity>",
		Short:         "Set a cart item's quantity",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "quantity must be an integer", err)
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.cart.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				if err := a.cart.UpdateQuantity(ctx, args[0], qty); err != nil {
					return mutationFailure(f, err)
				}
				// One-shot process: dispatch the debounced update now.
				if err := a.cart.Flush(ctx); err != nil {
					return mutationFailure(f, err)
				}
				return a.renderItems(f, a.cart, true)
			})
		},
	}
}

func newCartRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <product-id>...",
		Short:         "Remove products from the cart",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.cart.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				for _, id := range args {
					if err := a.cart.Remove(ctx, id); err != nil {
						return mutationFailure(f, err)
					}
				}
				return a.renderItems(f, a.cart, true)
			})
		},
	}
}

func newCartClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Remove everything from the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.cart.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				if err := a.cart.Clear(ctx); err != nil {
					return mutationFailure(f, err)
				}
				return f.Success("cart cleared")
			})
		},
	}
}

func newCartSelectCommand(rootOpts *RootOptions) *cobra.Command {
	var all, none bool
	cmd := &cobra.Command{
		Use:           "select [product-id]",
		Short:         "Toggle checkout selection for a cart item",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && !none && len(args) == 0 {
				return NewExitError(ExitCommandError, "a product id, --all, or --none is required")
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.cart.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				switch {
				case all:
					if err := a.sel.SelectAll(a.cart.Snapshot().EntityIDs()); err != nil {
						return WrapExitError(ExitCommandError, "persist selection", err)
					}
				case none:
					if err := a.sel.ClearSelection(); err != nil {
						return WrapExitError(ExitCommandError, "persist selection", err)
					}
				default:
					id := args[0]
					if !a.cart.Snapshot().Contains(id) {
						return NewExitError(ExitCommandError, fmt.Sprintf("%s is not in the cart", id))
					}
					if _, err := a.sel.Toggle(id); err != nil {
						return WrapExitError(ExitCommandError, "persist selection", err)
					}
				}
				return a.renderItems(f, a.cart, true)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "select every cart item")
	cmd.Flags().BoolVar(&none, "none", false, "clear the selection")
	cmd.MarkFlagsMutuallyExclusive("all", "none")
	return cmd
}

func newCartSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "summary",
		Short:         "Show server-computed cart totals",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				sum, err := a.client.CartSummary(ctx)
				if err != nil {
					return mutationFailure(f, err)
				}
				if f.Format == "json" {
					return f.Success(sum)
				}
				fmt.Fprintf(f.Writer, "%d items, %d units, subtotal %s\n",
					sum.TotalItems, sum.TotalQuantity, a.prices.Format(sum.Subtotal))
				return nil
			})
		},
	}
}

func newCartGroupedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "grouped",
		Short:         "Show the cart grouped by vendor",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				groups, err := a.client.CartGrouped(ctx)
				if err != nil {
					return mutationFailure(f, err)
				}
				return renderGroups(f, a, groups)
			})
		},
	}
}

func newCartDiagCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "diag",
		Short:         "Show cart entries that could not be rendered",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.cart.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				invalid := a.cart.InvalidEntries()
				if f.Format == "json" {
					return f.Success(invalid)
				}
				if len(invalid) == 0 {
					fmt.Fprintln(f.Writer, "no invalid entries")
					return nil
				}
				for _, e := range invalid {
					ref := e.EntityID
					if ref == "" {
						ref = e.ItemID
					}
					fmt.Fprintf(f.Writer, "%s: %s\n", ref, e.Reason)
				}
				return nil
			})
		},
	}
}

// withApp wires the app for one command invocation and closes it after fn.
func withApp(rootOpts *RootOptions, cmd *cobra.Command, fn func(context.Context, *app, *OutputFormatter) error) error {
	a, err := newApp(rootOpts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a, a.formatter(rootOpts, cmd))
}
