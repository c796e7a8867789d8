package cli

import (
	"errors"
	"fmt"

	"github.com/bmsj23/animomart-client/internal/api"
	"github.com/bmsj23/animomart-client/internal/collection"
)

// itemView is the output projection of one collection item.
type itemView struct {
	EntityID string  `json:"entityId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity,omitempty"`
	Vendor   string  `json:"vendor,omitempty"`
	Selected bool    `json:"selected,omitempty"`
}

// listResult is the JSON payload for list commands.
type listResult struct {
	Items        []itemView `json:"items"`
	InvalidCount int        `json:"invalidCount,omitempty"`
}

// itemViews projects a store snapshot. Selection is only meaningful for the
// cart; wishlist callers pass withSelection=false.
func (a *app) itemViews(st *collection.Store, withSelection bool) []itemView {
	snap := st.Snapshot()
	views := make([]itemView, 0, len(snap.Items))
	for _, it := range snap.Items {
		v := itemView{
			EntityID: it.EntityID,
			Name:     it.Entity.Name,
			Price:    it.Entity.Price,
			Vendor:   it.Entity.Vendor,
		}
		if st.Kind() == collection.KindCart {
			v.Quantity = it.Quantity
		}
		if withSelection {
			v.Selected = a.sel.Contains(it.EntityID)
		}
		views = append(views, v)
	}
	return views
}

// renderItems writes a list result in the configured format.
func (a *app) renderItems(f *OutputFormatter, st *collection.Store, withSelection bool) error {
	views := a.itemViews(st, withSelection)
	invalid := len(st.InvalidEntries())

	if f.Format == "json" {
		return f.Success(listResult{Items: views, InvalidCount: invalid})
	}

	if len(views) == 0 {
		fmt.Fprintf(f.Writer, "%s is empty\n", st.Kind())
		return nil
	}
	for _, v := range views {
		mark := " "
		if v.Selected {
			mark = "*"
		}
		line := fmt.Sprintf("%s %-12s %-24s %10s", mark, v.EntityID, v.Name, a.prices.Format(v.Price))
		if st.Kind() == collection.KindCart {
			line += fmt.Sprintf("  x%d", v.Quantity)
		}
		fmt.Fprintln(f.Writer, line)
	}
	if invalid > 0 {
		fmt.Fprintf(f.Writer, "(%d entries unavailable; run diag for details)\n", invalid)
	}
	return nil
}

// groupView is the JSON payload for one vendor group.
type groupView struct {
	Vendor string     `json:"vendor"`
	Items  []itemView `json:"items"`
}

// renderGroups writes the grouped cart view. Raw entries go through standard
// admission; entries without a usable product reference are skipped here,
// not surfaced (diag covers the canonical cart).
func renderGroups(f *OutputFormatter, a *app, groups []api.VendorGroup) error {
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		items, _ := collection.Reconcile(g.Entries)
		gv := groupView{Vendor: g.Vendor}
		for _, it := range items {
			gv.Items = append(gv.Items, itemView{
				EntityID: it.EntityID,
				Name:     it.Entity.Name,
				Price:    it.Entity.Price,
				Quantity: it.Quantity,
				Vendor:   g.Vendor,
			})
		}
		views = append(views, gv)
	}

	if f.Format == "json" {
		return f.Success(views)
	}
	for _, g := range views {
		fmt.Fprintf(f.Writer, "%s:\n", g.Vendor)
		for _, v := range g.Items {
			fmt.Fprintf(f.Writer, "  %-12s %-24s %10s  x%d\n",
				v.EntityID, v.Name, a.prices.Format(v.Price), v.Quantity)
		}
	}
	return nil
}

// mutationFailure converts a surfaced mutation error into the command result:
// the error is printed in the configured format and the process exits 1. The
// local state has already been rolled back by the store.
func mutationFailure(f *OutputFormatter, err error) error {
	code := "MUTATION"
	var me *collection.MutationError
	if errors.As(err, &me) {
		code = string(me.Code)
	}
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, "mutation failed", err)
}
