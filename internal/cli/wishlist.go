package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewWishlistCommand creates the wishlist command tree.
func NewWishlistCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Manage the wishlist",
	}

	cmd.AddCommand(newWishlistListCommand(rootOpts))
	cmd.AddCommand(newWishlistAddCommand(rootOpts))
	cmd.AddCommand(newWishlistRmCommand(rootOpts))
	cmd.AddCommand(newWishlistCheckCommand(rootOpts))

	return cmd
}

func newWishlistListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "Show the wishlist",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.wish.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				return a.renderItems(f, a.wish, false)
			})
		},
	}
}

func newWishlistAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "add <product-id>",
		Short:         "Add a product to the wishlist",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.wish.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				if err := a.wish.Add(ctx, args[0], 1); err != nil {
					return mutationFailure(f, err)
				}
				return a.renderItems(f, a.wish, false)
			})
		},
	}
}

func newWishlistRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <product-id>...",
		Short:         "Remove products from the wishlist",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.wish.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				for _, id := range args {
					if err := a.wish.Remove(ctx, id); err != nil {
						return mutationFailure(f, err)
					}
				}
				return a.renderItems(f, a.wish, false)
			})
		},
	}
}

func newWishlistCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "check <product-id>",
		Short:         "Ask the server whether a product is wishlisted",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				in, err := a.client.WishlistContains(ctx, args[0])
				if err != nil {
					return mutationFailure(f, err)
				}
				if f.Format == "json" {
					return f.Success(map[string]bool{"inWishlist": in})
				}
				if in {
					fmt.Fprintf(f.Writer, "%s is in the wishlist\n", args[0])
				} else {
					fmt.Fprintf(f.Writer, "%s is not in the wishlist\n", args[0])
				}
				return nil
			})
		},
	}
}
