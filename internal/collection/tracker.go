package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// pendingMutation is the debounce bookkeeping for one entity.
//
// At most one live pendingMutation exists per entity. A new edit to the same
// entity cancels and replaces the timer and the desired quantity, but never
// recaptures the snapshot: the rollback point is always the state before the
// burst began, not the state before the latest keystroke.
type pendingMutation struct {
	entityID string
	desired  int
	snapshot Collection
	timer    Timer
	gen      uint64
}

// UpdateQuantity sets an item's quantity optimistically and schedules a
// debounced remote update. A burst of calls on the same entity within the
// debounce window collapses into exactly one remote call carrying the final
// requested quantity.
//
// Rejections (no local mutation, no network call):
//   - the entity is not in the collection
//   - quantity < 1
//   - quantity above known stock
//
// If the coalesced call fails, the collection reverts to its state
// immediately before the first change in the burst and the failure is
// surfaced through the store's notifier.
func (s *Store) UpdateQuantity(ctx context.Context, entityID string, quantity int) error {
	if s.kind == KindWishlist {
		return NewValidationError("update", entityID, "wishlist items carry no quantity")
	}

	s.mu.Lock()
	idx := s.state.find(entityID)
	if idx < 0 {
		s.mu.Unlock()
		return NewValidationError("update", entityID, "entity is not in the collection")
	}
	if quantity < 1 {
		s.mu.Unlock()
		return NewValidationError("update", entityID, "quantity must be at least 1")
	}
	if stock := s.state.Items[idx].Entity.Stock; stock != nil && quantity > *stock {
		s.mu.Unlock()
		return NewValidationError("update", entityID,
			fmt.Sprintf("quantity %d exceeds available stock %d", quantity, *stock))
	}

	p := s.pending[entityID]
	if p == nil {
		p = &pendingMutation{
			entityID: entityID,
			snapshot: s.state,
		}
		s.pending[entityID] = p
	} else if p.timer != nil {
		p.timer.Stop()
	}

	p.desired = quantity
	p.gen = s.bumpLocked(entityID)

	next := s.state.Clone()
	next.Items[idx].Quantity = quantity
	s.setStateLocked(next)

	p.timer = s.timers.AfterFunc(s.window, func() {
		if err := s.dispatch(context.Background(), entityID); err != nil {
			s.notify(err)
		}
	})
	s.mu.Unlock()
	return nil
}

// Flush dispatches every pending debounced update immediately, without
// waiting for timers. Used on process exit and by one-shot CLI commands.
// Failures roll back their bursts and are returned joined; they are not
// routed through the notifier a second time.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id, p := range s.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.dispatch(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PendingCount returns the number of entities with an open debounce window.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// cancelPendingLocked discards an entity's open burst, if any, stopping its
// timer. Caller must hold mu.
func (s *Store) cancelPendingLocked(entityID string) {
	p := s.pending[entityID]
	if p == nil {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(s.pending, entityID)
}

// dispatch issues the single coalesced update call for one entity's burst.
//
// The pending entry is consumed before the call so a new edit arriving during
// the flight starts a fresh burst. On failure the collection reverts to the
// burst-start snapshot unless a newer mutation has superseded the burst.
func (s *Store) dispatch(ctx context.Context, entityID string) error {
	s.mu.Lock()
	p := s.pending[entityID]
	if p == nil {
		s.mu.Unlock()
		return nil
	}
	delete(s.pending, entityID)
	if s.gen[entityID] != p.gen {
		// An add, remove, or clear moved past this burst while the timer
		// was armed.
		slog.Debug("skipping superseded dispatch", "entity", entityID)
		s.mu.Unlock()
		return nil
	}
	quantity := p.desired
	snapshot := p.snapshot
	gen := p.gen
	s.mu.Unlock()

	entries, err := s.remote.Update(ctx, entityID, quantity)
	if err != nil {
		s.rollback(gen, entityID, snapshot)
		return NewNetworkError("update", entityID, err)
	}

	s.mergeResponse(gen, entityID, entries)
	return nil
}
