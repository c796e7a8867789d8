package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounceWindow is how long a quantity-edit burst may grow before the
// coalesced update is dispatched.
const DefaultDebounceWindow = 300 * time.Millisecond

// DefaultWishlistCapacity is the fixed membership limit for wishlist stores.
const DefaultWishlistCapacity = 20

// Notifier receives remote failures from asynchronous dispatches (debounce
// timers have no caller to return an error to). The default notifier logs;
// the CLI installs one that prints to the user.
type Notifier func(err error)

// Store owns the client-side snapshot of one collection (cart or wishlist)
// for one owner.
//
// Thread-safety model:
//   - every state transition happens under mu, derived from the state held
//     at that moment, never from an externally cached copy
//   - remote calls run outside the lock on the caller's goroutine
//   - debounce dispatches run on timer goroutines and re-acquire the lock
//
// INVARIANTS:
//   - no two items share an EntityID
//   - the selection set is a subset of item entity ids after every mutation
//   - every rollback target is a full Collection snapshot, never a partial
//     field-level revert
//
// Per-entity generation counters stamp each optimistic mutation. A remote
// completion whose captured generation no longer matches is discarded on
// arrival, so a slow early call cannot overwrite state written after it
// started.
type Store struct {
	mu        sync.Mutex
	kind      Kind
	ownerID   string
	remote    Remote
	selection Selection
	timers    TimerFactory
	window    time.Duration
	capacity  int
	notify    Notifier

	state   Collection
	invalid []InvalidEntry
	pending map[string]*pendingMutation
	gen     map[string]uint64
	genAll  uint64
}

// Option configures a Store.
type Option func(*Store)

// WithDebounceWindow overrides the quantity-edit coalescing window.
func WithDebounceWindow(d time.Duration) Option {
	return func(s *Store) {
		s.window = d
	}
}

// WithTimers injects a TimerFactory. Tests use testutil.ManualTimers to fire
// debounce windows deterministically.
func WithTimers(tf TimerFactory) Option {
	return func(s *Store) {
		s.timers = tf
	}
}

// WithSelection attaches the durable selected-for-checkout set. The Store
// prunes it synchronously after every mutation.
func WithSelection(sel Selection) Option {
	return func(s *Store) {
		s.selection = sel
	}
}

// WithCapacity overrides the membership limit. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(s *Store) {
		s.capacity = n
	}
}

// WithNotifier overrides how asynchronous dispatch failures are surfaced.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notify = n
	}
}

// New creates a Store for the given owner, backed by the given remote.
// Wishlist stores default to DefaultWishlistCapacity; cart stores are
// unbounded unless WithCapacity is given.
func New(kind Kind, ownerID string, remote Remote, opts ...Option) *Store {
	s := &Store{
		kind:    kind,
		ownerID: ownerID,
		remote:  remote,
		timers:  WallTimers{},
		window:  DefaultDebounceWindow,
		state:   Collection{OwnerID: ownerID},
		pending: make(map[string]*pendingMutation),
		gen:     make(map[string]uint64),
	}
	if kind == KindWishlist {
		s.capacity = DefaultWishlistCapacity
	}
	s.notify = func(err error) {
		slog.Warn("collection mutation failed", "kind", string(kind), "error", err)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns the collection flavor this store manages.
func (s *Store) Kind() Kind {
	return s.kind
}

// Snapshot returns a deep copy of the current collection. Callers can hold
// it indefinitely without observing later mutations.
func (s *Store) Snapshot() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// InvalidEntries returns the diagnostics recorded by the last reconciliation.
func (s *Store) InvalidEntries() []InvalidEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InvalidEntry, len(s.invalid))
	copy(out, s.invalid)
	return out
}

// Load fetches the remote collection, reconciles it, and replaces local
// state. On failure the prior local state is left untouched - there is no
// partial overwrite. A load that completes after a newer local mutation is
// dropped as stale.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	before := s.genAll
	s.mu.Unlock()

	entries, err := s.remote.Fetch(ctx)
	if err != nil {
		return NewNetworkError("load", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.genAll != before {
		slog.Debug("dropping stale load response", "kind", string(s.kind))
		return nil
	}
	s.replaceLocked(entries)
	return nil
}

// Add merges or inserts an item optimistically, then issues an immediate
// (non-debounced) create call. On failure the add is reverted to the
// pre-call snapshot. An open quantity-edit burst on the same entity is
// discarded; the create supersedes it.
//
// Rejections (no mutation, no network call):
//   - quantity < 1
//   - merged quantity above known stock
//   - wishlist already at capacity
//
// A server report that the entity is already present is idempotent success.
func (s *Store) Add(ctx context.Context, entityID string, quantity int) error {
	if entityID == "" {
		return NewValidationError("add", entityID, "entity id is required")
	}
	if s.kind == KindWishlist {
		quantity = 1
	}
	if quantity < 1 {
		return NewValidationError("add", entityID, "quantity must be at least 1")
	}

	s.mu.Lock()
	idx := s.state.find(entityID)
	if idx >= 0 {
		it := s.state.Items[idx]
		merged := it.Quantity + quantity
		if s.kind == KindWishlist {
			// Membership is idempotent locally; nothing to do.
			s.mu.Unlock()
			return nil
		}
		if it.Entity.Stock != nil && merged > *it.Entity.Stock {
			s.mu.Unlock()
			return NewValidationError("add", entityID,
				fmt.Sprintf("quantity %d exceeds available stock %d", merged, *it.Entity.Stock))
		}
	} else if s.capacity > 0 && len(s.state.Items) >= s.capacity {
		s.mu.Unlock()
		return NewCapacityError("add", entityID, s.capacity)
	}

	s.cancelPendingLocked(entityID)
	gen := s.bumpLocked(entityID)
	snapshot := s.state

	next := s.state.Clone()
	if idx >= 0 {
		next.Items[idx].Quantity += quantity
	} else {
		next.Items = append(next.Items, Item{
			ItemID:   "pending-" + entityID,
			EntityID: entityID,
			Quantity: quantity,
			Entity:   EntityRef{ID: entityID},
			AddedAt:  time.Now(),
		})
	}
	s.setStateLocked(next)
	s.mu.Unlock()

	entries, err := s.remote.Create(ctx, entityID, quantity)
	if err != nil && !errors.Is(err, ErrAlreadyPresent) {
		s.rollback(gen, entityID, snapshot)
		return NewNetworkError("add", entityID, err)
	}

	s.mergeResponse(gen, entityID, entries)
	return nil
}

// Remove optimistically removes the item and issues an immediate remote
// delete, reverting on failure. Removing an entity that is not in the
// collection is a no-op with no network call.
func (s *Store) Remove(ctx context.Context, entityID string) error {
	s.mu.Lock()
	idx := s.state.find(entityID)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	s.cancelPendingLocked(entityID)
	gen := s.bumpLocked(entityID)
	snapshot := s.state

	next := s.state.Clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	s.setStateLocked(next)
	s.mu.Unlock()

	err := s.remote.Delete(ctx, entityID)
	if err != nil && !errors.Is(err, ErrAlreadyPresent) {
		s.rollback(gen, entityID, snapshot)
		return NewNetworkError("remove", entityID, err)
	}
	return nil
}

// Clear optimistically empties the collection and issues a remote clear,
// reverting on failure. An already-empty collection is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if len(s.state.Items) == 0 {
		s.mu.Unlock()
		return nil
	}

	for _, id := range s.state.EntityIDs() {
		s.cancelPendingLocked(id)
		s.bumpEntityLocked(id)
	}
	s.genAll++
	before := s.genAll
	snapshot := s.state

	s.setStateLocked(Collection{OwnerID: s.ownerID})
	s.mu.Unlock()

	if err := s.remote.Clear(ctx); err != nil {
		s.mu.Lock()
		if s.genAll == before {
			s.setStateLocked(snapshot)
		}
		s.mu.Unlock()
		return NewNetworkError("clear", "", err)
	}
	return nil
}

// Reset discards all local state without touching the remote collection.
// Called on sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pending {
		s.cancelPendingLocked(id)
	}
	s.genAll++
	s.invalid = nil
	s.setStateLocked(Collection{OwnerID: s.ownerID})
}

// rollback restores the pre-mutation snapshot unless a newer mutation to the
// same entity has superseded this one.
func (s *Store) rollback(gen uint64, entityID string, snapshot Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[entityID] != gen {
		slog.Debug("skipping rollback: mutation superseded", "entity", entityID)
		return
	}
	s.setStateLocked(snapshot)
}

// mergeResponse reconciles a response envelope into local state unless the
// mutation that produced it has been superseded. A nil entry set (no
// envelope in the response) keeps the optimistic state.
func (s *Store) mergeResponse(gen uint64, entityID string, entries []Entry) {
	if entries == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[entityID] != gen {
		slog.Debug("dropping stale response", "entity", entityID)
		return
	}
	s.replaceLocked(entries)
}

// replaceLocked reconciles entries and installs them as the new state.
// Caller must hold mu.
func (s *Store) replaceLocked(entries []Entry) {
	items, invalid := Reconcile(entries)
	s.invalid = invalid
	s.setStateLocked(Collection{OwnerID: s.ownerID, Items: items})
}

// setStateLocked installs next as the current collection and synchronously
// prunes the selection set so the subset invariant holds before the mutation
// returns. Caller must hold mu.
func (s *Store) setStateLocked(next Collection) {
	s.state = next
	if s.selection == nil {
		return
	}
	if err := s.selection.Prune(s.state.EntityIDs()); err != nil {
		slog.Warn("selection prune failed", "kind", string(s.kind), "error", err)
	}
}

// bumpLocked advances the entity's generation and the collection-wide
// generation, returning the new entity generation. Caller must hold mu.
func (s *Store) bumpLocked(entityID string) uint64 {
	s.genAll++
	return s.bumpEntityLocked(entityID)
}

func (s *Store) bumpEntityLocked(entityID string) uint64 {
	s.gen[entityID]++
	return s.gen[entityID]
}
