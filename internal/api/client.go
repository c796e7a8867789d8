// Package api is the HTTP boundary to the remote AnimoMart collection
// service. It implements collection.Remote for the cart and wishlist
// endpoints and exposes the read-only cart views (summary, grouped).
//
// The package maps transport outcomes into the engine's error model: a 409
// (and a 404 on delete) becomes collection.ErrAlreadyPresent so the store can
// treat it as idempotent success; every other non-2xx status becomes a
// StatusError for the store to wrap as a network failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bmsj23/animomart-client/internal/collection"
)

// RequestIDGenerator produces correlation ids attached to every request as
// X-Request-ID. Production uses time-sortable UUIDv7; tests inject fixed ids.
type RequestIDGenerator func() string

// UUIDv7RequestIDs is the production generator.
//
// Panics if UUID generation fails (should never happen in practice).
func UUIDv7RequestIDs() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Config configures the service client.
type Config struct {
	// BaseURL is the service root, e.g. "https://api.animomart.ph/v1".
	BaseURL string

	// Token is the bearer token for the authenticated owner. Optional;
	// when empty no Authorization header is sent.
	Token string

	// HTTPClient overrides the transport. Defaults to http.DefaultClient;
	// timeout policy belongs to the transport, not to this client.
	HTTPClient *http.Client

	// RequestIDs overrides correlation id generation.
	RequestIDs RequestIDGenerator
}

// Client is a thin JSON-over-HTTP client for the collection service.
type Client struct {
	base  string
	token string
	http  *http.Client
	reqID RequestIDGenerator
}

// New validates the config and creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	c := &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
		http:  cfg.HTTPClient,
		reqID: cfg.RequestIDs,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.reqID == nil {
		c.reqID = UUIDv7RequestIDs
	}
	return c, nil
}

// Cart returns the collection.Remote bound to the cart endpoints.
func (c *Client) Cart() collection.Remote {
	return cartRemote{c}
}

// Wishlist returns the collection.Remote bound to the wishlist endpoints.
func (c *Client) Wishlist() collection.Remote {
	return wishlistRemote{c}
}

// envelope is the response wrapper used by every collection read. Cart
// responses carry "items"; wishlist responses carry "products".
type envelope struct {
	Items    []wireEntry `json:"items"`
	Products []wireEntry `json:"products"`
}

// entries returns whichever collection the envelope carried.
func (e envelope) entries() []wireEntry {
	if e.Items != nil {
		return e.Items
	}
	return e.Products
}

// wireEntry is one collection entry as the service serializes it. The nested
// product is nullable; admission happens in the reconciler, not here.
type wireEntry struct {
	ItemID    string       `json:"itemId"`
	ProductID string       `json:"productId"`
	Quantity  int          `json:"quantity"`
	Product   *wireProduct `json:"product"`
	AddedAt   time.Time    `json:"addedAt"`
}

type wireProduct struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Price  *float64 `json:"price"`
	Stock  *int     `json:"stock"`
	Image  string   `json:"image"`
	Vendor string   `json:"vendor"`
}

// toEntries converts wire entries to the engine's raw entry type, leaving
// validity untouched for the reconciler to judge.
func toEntries(wires []wireEntry) []collection.Entry {
	out := make([]collection.Entry, len(wires))
	for i, w := range wires {
		e := collection.Entry{
			ItemID:   w.ItemID,
			EntityID: w.ProductID,
			Quantity: w.Quantity,
			AddedAt:  w.AddedAt,
		}
		if e.EntityID == "" && w.Product != nil {
			e.EntityID = w.Product.ID
		}
		if w.Product != nil {
			e.Entity = &collection.EntityCandidate{
				ID:     w.Product.ID,
				Name:   w.Product.Name,
				Price:  w.Product.Price,
				Stock:  w.Product.Stock,
				Image:  w.Product.Image,
				Vendor: w.Product.Vendor,
			}
		}
		out[i] = e
	}
	return out
}

// do performs one JSON request. A nil out skips response decoding.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := c.reqID()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	slog.Debug("collection service call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
	)

	switch {
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, collection.ErrAlreadyPresent)
	case resp.StatusCode == http.StatusNotFound && method == http.MethodDelete:
		// Deleting something the server no longer has is idempotent success.
		return fmt.Errorf("%s %s: %w", method, path, collection.ErrAlreadyPresent)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return newStatusError(method, path, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
