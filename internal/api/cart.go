package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bmsj23/animomart-client/internal/collection"
)

// cartRemote binds collection.Remote to the cart endpoints.
type cartRemote struct {
	c *Client
}

func (r cartRemote) Fetch(ctx context.Context) ([]collection.Entry, error) {
	var env envelope
	if err := r.c.do(ctx, http.MethodGet, "/cart", nil, &env); err != nil {
		return nil, err
	}
	return toEntries(env.entries()), nil
}

func (r cartRemote) Create(ctx context.Context, entityID string, quantity int) ([]collection.Entry, error) {
	body := map[string]any{"productId": entityID, "quantity": quantity}
	var env envelope
	if err := r.c.do(ctx, http.MethodPost, "/cart", body, &env); err != nil {
		return nil, err
	}
	return toEntries(env.entries()), nil
}

func (r cartRemote) Update(ctx context.Context, entityID string, quantity int) ([]collection.Entry, error) {
	body := map[string]any{"quantity": quantity}
	var env envelope
	if err := r.c.do(ctx, http.MethodPut, "/cart/"+url.PathEscape(entityID), body, &env); err != nil {
		return nil, err
	}
	return toEntries(env.entries()), nil
}

func (r cartRemote) Delete(ctx context.Context, entityID string) error {
	return r.c.do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(entityID), nil, nil)
}

func (r cartRemote) Clear(ctx context.Context) error {
	return r.c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}

// CartSummary is the GET /cart/summary read view.
type CartSummary struct {
	TotalItems    int     `json:"totalItems"`
	TotalQuantity int     `json:"totalQuantity"`
	Subtotal      float64 `json:"subtotal"`
}

// CartSummary fetches the server-computed cart totals. Read-only; no
// reconciliation side effects.
func (c *Client) CartSummary(ctx context.Context) (CartSummary, error) {
	var out CartSummary
	err := c.do(ctx, http.MethodGet, "/cart/summary", nil, &out)
	return out, err
}

// VendorGroup is one vendor's slice of the GET /cart/grouped read view.
type VendorGroup struct {
	Vendor  string             `json:"vendor"`
	Entries []collection.Entry `json:"-"`
}

// cartGroupedResponse is the wire shape of GET /cart/grouped.
type cartGroupedResponse struct {
	Groups []struct {
		Vendor string      `json:"vendor"`
		Items  []wireEntry `json:"items"`
	} `json:"groups"`
}

// CartGrouped fetches the cart grouped by vendor.
func (c *Client) CartGrouped(ctx context.Context) ([]VendorGroup, error) {
	var resp cartGroupedResponse
	if err := c.do(ctx, http.MethodGet, "/cart/grouped", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]VendorGroup, len(resp.Groups))
	for i, g := range resp.Groups {
		out[i] = VendorGroup{Vendor: g.Vendor, Entries: toEntries(g.Items)}
	}
	return out, nil
}
