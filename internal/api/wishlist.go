package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bmsj23/animomart-client/internal/collection"
)

// wishlistRemote binds collection.Remote to the wishlist endpoints.
// Wishlist membership carries no quantity; Create ignores it and Update is
// never issued (the store rejects quantity edits on wishlists first).
type wishlistRemote struct {
	c *Client
}

func (r wishlistRemote) Fetch(ctx context.Context) ([]collection.Entry, error) {
	var env envelope
	if err := r.c.do(ctx, http.MethodGet, "/wishlist", nil, &env); err != nil {
		return nil, err
	}
	return toEntries(env.entries()), nil
}

func (r wishlistRemote) Create(ctx context.Context, entityID string, _ int) ([]collection.Entry, error) {
	body := map[string]any{"productId": entityID}
	var env envelope
	if err := r.c.do(ctx, http.MethodPost, "/wishlist", body, &env); err != nil {
		return nil, err
	}
	return toEntries(env.entries()), nil
}

func (r wishlistRemote) Update(ctx context.Context, entityID string, quantity int) ([]collection.Entry, error) {
	return nil, fmt.Errorf("wishlist entries have no quantity to update (entity=%s)", entityID)
}

func (r wishlistRemote) Delete(ctx context.Context, entityID string) error {
	return r.c.do(ctx, http.MethodDelete, "/wishlist/"+url.PathEscape(entityID), nil, nil)
}

// Clear empties the wishlist by deleting every current entry; the service
// exposes no bulk wishlist delete.
func (r wishlistRemote) Clear(ctx context.Context) error {
	entries, err := r.Fetch(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.EntityID == "" {
			continue
		}
		if err := r.Delete(ctx, e.EntityID); err != nil && !errors.Is(err, collection.ErrAlreadyPresent) {
			return err
		}
	}
	return nil
}

// wishlistCheckResponse is the wire shape of GET /wishlist/check/{id}.
type wishlistCheckResponse struct {
	InWishlist bool `json:"inWishlist"`
}

// WishlistContains asks the server whether a product is in the wishlist.
func (c *Client) WishlistContains(ctx context.Context, productID string) (bool, error) {
	var resp wishlistCheckResponse
	if err := c.do(ctx, http.MethodGet, "/wishlist/check/"+url.PathEscape(productID), nil, &resp); err != nil {
		return false, err
	}
	return resp.InWishlist, nil
}
