package collection

import (
	"context"
	"time"
)

// Kind distinguishes the two collection flavors.
//
// The cart carries per-item quantities; the wishlist is membership-only and
// enforces a fixed capacity. Everything else about the engine is identical.
type Kind string

const (
	// KindCart is the shopping cart: quantity-bearing, unbounded.
	KindCart Kind = "cart"
	// KindWishlist is the wishlist: membership-only, capacity-bounded.
	KindWishlist Kind = "wishlist"
)

// EntityRef is the denormalized snapshot of a catalog product embedded in a
// collection item. It is supplied by the server and is NOT authoritative
// inventory - Stock is a hint for local validation, nil when unknown.
type EntityRef struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Stock  *int    `json:"stock,omitempty"`
	Image  string  `json:"image,omitempty"`
	Vendor string  `json:"vendor,omitempty"`
}

// clone returns a copy with no shared pointers.
func (r EntityRef) clone() EntityRef {
	out := r
	if r.Stock != nil {
		s := *r.Stock
		out.Stock = &s
	}
	return out
}

// Item is one entry of a collection. Quantity is always 1 for wishlist items.
type Item struct {
	ItemID   string    `json:"itemId"`
	EntityID string    `json:"entityId"`
	Quantity int       `json:"quantity"`
	Entity   EntityRef `json:"entity"`
	AddedAt  time.Time `json:"addedAt"`
}

// Collection is the client-side snapshot of a server-owned collection.
//
// INVARIANT: no two items share the same EntityID.
// Items preserve server ordering; local inserts append.
type Collection struct {
	OwnerID string `json:"ownerId"`
	Items   []Item `json:"items"`
}

// Clone returns a deep copy. Transformations in the Store always operate on
// clones so interleaved handlers can never observe partial writes.
func (c Collection) Clone() Collection {
	out := Collection{OwnerID: c.OwnerID}
	if c.Items != nil {
		out.Items = make([]Item, len(c.Items))
		for i, it := range c.Items {
			it.Entity = it.Entity.clone()
			out.Items[i] = it
		}
	}
	return out
}

// find returns the index of the item holding entityID, or -1.
func (c Collection) find(entityID string) int {
	for i, it := range c.Items {
		if it.EntityID == entityID {
			return i
		}
	}
	return -1
}

// Contains reports whether an item for entityID is present.
func (c Collection) Contains(entityID string) bool {
	return c.find(entityID) >= 0
}

// EntityIDs returns the entity ids of all items, in order.
func (c Collection) EntityIDs() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.EntityID
	}
	return ids
}

// Entry is a raw collection entry as returned by the remote service, before
// admission. Entity is nullable and its fields may be partially populated;
// the reconciler decides whether the entry becomes an Item or an
// InvalidEntry.
type Entry struct {
	ItemID   string           `json:"itemId"`
	EntityID string           `json:"entityId"`
	Quantity int              `json:"quantity"`
	Entity   *EntityCandidate `json:"entity"`
	AddedAt  time.Time        `json:"addedAt"`
}

// EntityCandidate is an unvalidated entity reference off the wire.
// Price and Stock are pointers because the server may omit them; a missing
// price makes the whole entry inadmissible.
type EntityCandidate struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Price  *float64 `json:"price"`
	Stock  *int     `json:"stock"`
	Image  string   `json:"image"`
	Vendor string   `json:"vendor"`
}

// InvalidEntry records a server entry that failed admission. Invalid entries
// are excluded from Collection.Items and surfaced for diagnostic UI only -
// the engine never deletes them remotely on its own.
type InvalidEntry struct {
	ItemID   string `json:"itemId"`
	EntityID string `json:"entityId"`
	Reason   string `json:"reason"`
}

// Remote is the boundary to the remote collection service. Implemented by
// the api package for the cart and wishlist endpoints, and by scripted fakes
// in tests.
//
// Fetch, Create, and Update return the refreshed entry set from the response
// envelope; the Store runs every one of them through the reconciler.
type Remote interface {
	Fetch(ctx context.Context) ([]Entry, error)
	Create(ctx context.Context, entityID string, quantity int) ([]Entry, error)
	Update(ctx context.Context, entityID string, quantity int) ([]Entry, error)
	Delete(ctx context.Context, entityID string) error
	Clear(ctx context.Context) error
}

// Selection is the durable selected-for-checkout set kept consistent with the
// collection. The Store prunes it synchronously after every mutation so the
// subset invariant (selection ⊆ item entity ids) never has a window where it
// is violated. Implemented by the selection package.
type Selection interface {
	Prune(live []string) error
}
