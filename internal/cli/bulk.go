package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bmsj23/animomart-client/internal/collection"
)

// NewBulkCommand creates the bulk command tree. Bulk commands operate on the
// persisted checkout selection: select items with "cart select" first.
func NewBulkCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Operate on the selected cart items",
	}

	cmd.AddCommand(newBulkRmCommand(rootOpts))
	cmd.AddCommand(newBulkMoveCommand(rootOpts))

	return cmd
}

// bulkReport is the JSON payload for bulk command results.
type bulkReport struct {
	Attempted  []string `json:"attempted"`
	Succeeded  []string `json:"succeeded"`
	Failed     []string `json:"failed,omitempty"`
	RolledBack bool     `json:"rolledBack,omitempty"`
}

func newBulkRmCommand(rootOpts *RootOptions) *cobra.Command {
	var atomic bool
	cmd := &cobra.Command{
		Use:           "rm",
		Short:         "Remove the selected items from the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				ids, err := loadSelected(ctx, a, f)
				if err != nil {
					return err
				}
				res := a.cart.RemoveBatch(ctx, ids, collection.BulkOptions{Atomic: atomic})
				return reportBulk(f, res)
			})
		},
	}
	cmd.Flags().BoolVar(&atomic, "atomic", false, "roll the whole batch back if any item fails")
	return cmd
}

func newBulkMoveCommand(rootOpts *RootOptions) *cobra.Command {
	var atomic bool
	cmd := &cobra.Command{
		Use:           "move",
		Short:         "Move the selected items from the cart to the wishlist",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				ids, err := loadSelected(ctx, a, f)
				if err != nil {
					return err
				}
				if err := a.wish.Load(ctx); err != nil {
					return mutationFailure(f, err)
				}
				res, err := a.cart.MoveBatch(ctx, a.wish, ids, collection.BulkOptions{Atomic: atomic})
				if err != nil && len(res.Attempted) == 0 {
					// Rejected before any mutation (capacity, bad target).
					return mutationFailure(f, err)
				}
				return reportBulk(f, res)
			})
		},
	}
	cmd.Flags().BoolVar(&atomic, "atomic", false, "roll the whole batch back if any item fails")
	return cmd
}

// loadSelected loads the cart and resolves the persisted selection. An empty
// selection is a command error: there is nothing to operate on.
func loadSelected(ctx context.Context, a *app, f *OutputFormatter) ([]string, error) {
	if err := a.cart.Load(ctx); err != nil {
		return nil, mutationFailure(f, err)
	}
	ids := a.sel.Selected()
	if len(ids) == 0 {
		return nil, NewExitError(ExitCommandError, "no items selected; use \"cart select\" first")
	}
	return ids, nil
}

// reportBulk writes the outcome of a bulk operation. Any constituent failure
// makes the command exit 1 even when other items succeeded.
func reportBulk(f *OutputFormatter, res collection.BulkResult) error {
	report := bulkReport{
		Attempted:  res.Attempted,
		Succeeded:  res.Succeeded,
		RolledBack: res.RolledBack,
	}
	for _, bf := range res.Failed {
		report.Failed = append(report.Failed, bf.EntityID)
	}

	if f.Format == "json" {
		if err := f.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "attempted %d, succeeded %d\n", len(report.Attempted), len(report.Succeeded))
		if len(report.Failed) > 0 {
			fmt.Fprintf(f.Writer, "failed: %s\n", strings.Join(report.Failed, ", "))
		}
		if report.RolledBack {
			fmt.Fprintln(f.Writer, "batch rolled back")
		}
	}

	if err := res.Err(); err != nil {
		return WrapExitError(ExitFailure, "bulk operation failed", err)
	}
	return nil
}
