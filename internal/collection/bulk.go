package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// BulkOptions configures a multi-item operation.
//
// The default is per-item transactions: each constituent call that fails
// reverts only its own item, and the result reports partial success. Atomic
// restores the older all-or-nothing behavior where any failure rolls the
// entire batch back to the pre-batch snapshot - coarser, but it never leaves
// a batch half-applied locally.
type BulkOptions struct {
	Atomic bool
}

// BulkFailure records one failed constituent call.
type BulkFailure struct {
	EntityID string
	Err      error
}

// BulkResult reports the outcome of a bulk operation.
type BulkResult struct {
	// Attempted lists the entity ids the batch actually operated on
	// (ids absent from the collection are skipped as no-ops).
	Attempted []string

	// Succeeded lists ids whose remote calls completed.
	Succeeded []string

	// Failed lists ids whose remote calls failed, with their errors.
	Failed []BulkFailure

	// RolledBack reports that the whole batch was reverted locally
	// (atomic mode only).
	RolledBack bool
}

// Err returns nil when every constituent call succeeded, otherwise a network
// mutation error summarizing the failures.
func (r BulkResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = fmt.Errorf("%s: %w", f.EntityID, f.Err)
	}
	return NewNetworkError("bulk", "", errors.Join(errs...))
}

// RemoveBatch removes multiple items as one optimistic unit.
//
// The full batch's optimistic effect applies to the store immediately, then
// the constituent remote deletes run concurrently. Ids not present in the
// collection are skipped without a network call.
func (s *Store) RemoveBatch(ctx context.Context, entityIDs []string, opts BulkOptions) BulkResult {
	var res BulkResult

	s.mu.Lock()
	removed := make(map[string]Item)
	gens := make(map[string]uint64)
	for _, id := range entityIDs {
		idx := s.state.find(id)
		if idx < 0 {
			continue
		}
		s.cancelPendingLocked(id)
		removed[id] = s.state.Items[idx]
		gens[id] = s.bumpLocked(id)
		res.Attempted = append(res.Attempted, id)
	}
	if len(res.Attempted) == 0 {
		s.mu.Unlock()
		return res
	}

	snapshot := s.state
	batchGen := s.genAll

	next := s.state.Clone()
	kept := next.Items[:0]
	for _, it := range next.Items {
		if _, gone := removed[it.EntityID]; !gone {
			kept = append(kept, it)
		}
	}
	next.Items = kept
	s.setStateLocked(next)
	s.mu.Unlock()

	failures := s.runConcurrent(res.Attempted, func(id string) error {
		err := s.remote.Delete(ctx, id)
		if errors.Is(err, ErrAlreadyPresent) {
			return nil
		}
		return err
	})
	s.collectOutcomes(&res, failures)

	if len(res.Failed) == 0 {
		return res
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.Atomic {
		if s.genAll == batchGen {
			s.setStateLocked(snapshot)
			res.RolledBack = true
		}
		return res
	}

	// Per-item revert: put only the failed items back, in their pre-batch
	// order, unless a newer mutation superseded them.
	restore := s.state.Clone()
	for _, it := range snapshot.Items {
		if _, failed := removedFailure(res.Failed, it.EntityID); !failed {
			continue
		}
		if s.gen[it.EntityID] != gens[it.EntityID] {
			continue
		}
		if !restore.Contains(it.EntityID) {
			restore.Items = append(restore.Items, it)
		}
	}
	s.setStateLocked(restore)
	return res
}

// MoveBatch moves multiple items from this store into target (cart to
// wishlist, or back) as one optimistic unit. Each constituent is a create on
// the target followed by a delete on the source.
//
// The whole move is rejected locally with a capacity error, before any
// mutation or network call, if the target cannot hold the incoming items.
func (s *Store) MoveBatch(ctx context.Context, target *Store, entityIDs []string, opts BulkOptions) (BulkResult, error) {
	var res BulkResult
	if target == nil {
		return res, NewValidationError("move", "", "target store is required")
	}

	tgtState := target.Snapshot()
	incoming := 0
	srcState := s.Snapshot()
	for _, id := range entityIDs {
		if srcState.Contains(id) && !tgtState.Contains(id) {
			incoming++
		}
	}
	if target.capacity > 0 && len(tgtState.Items)+incoming > target.capacity {
		return res, NewCapacityError("move", "", target.capacity)
	}

	// Source side: optimistic removal.
	s.mu.Lock()
	moved := make(map[string]Item)
	srcGens := make(map[string]uint64)
	for _, id := range entityIDs {
		idx := s.state.find(id)
		if idx < 0 {
			continue
		}
		s.cancelPendingLocked(id)
		moved[id] = s.state.Items[idx]
		srcGens[id] = s.bumpLocked(id)
		res.Attempted = append(res.Attempted, id)
	}
	if len(res.Attempted) == 0 {
		s.mu.Unlock()
		return res, nil
	}
	srcSnapshot := s.state
	srcBatchGen := s.genAll

	next := s.state.Clone()
	kept := next.Items[:0]
	for _, it := range next.Items {
		if _, gone := moved[it.EntityID]; !gone {
			kept = append(kept, it)
		}
	}
	next.Items = kept
	s.setStateLocked(next)
	s.mu.Unlock()

	// Target side: optimistic insert, carrying the full entity snapshot the
	// source already holds.
	target.mu.Lock()
	tgtGens := make(map[string]uint64)
	tgtSnapshot := target.state
	tnext := target.state.Clone()
	for _, id := range res.Attempted {
		tgtGens[id] = target.bumpLocked(id)
		if tnext.Contains(id) {
			continue
		}
		it := moved[id]
		it.ItemID = "pending-" + id
		it.Quantity = 1
		it.AddedAt = time.Now()
		tnext.Items = append(tnext.Items, it)
	}
	tgtBatchGen := target.genAll
	target.setStateLocked(tnext)
	target.mu.Unlock()

	failures := s.runConcurrent(res.Attempted, func(id string) error {
		if _, err := target.remote.Create(ctx, id, 1); err != nil && !errors.Is(err, ErrAlreadyPresent) {
			return err
		}
		if err := s.remote.Delete(ctx, id); err != nil && !errors.Is(err, ErrAlreadyPresent) {
			return err
		}
		return nil
	})
	s.collectOutcomes(&res, failures)

	if len(res.Failed) == 0 {
		return res, nil
	}

	if opts.Atomic {
		s.mu.Lock()
		if s.genAll == srcBatchGen {
			s.setStateLocked(srcSnapshot)
			res.RolledBack = true
		}
		s.mu.Unlock()

		target.mu.Lock()
		if target.genAll == tgtBatchGen {
			target.setStateLocked(tgtSnapshot)
		}
		target.mu.Unlock()
		return res, res.Err()
	}

	// Per-item revert on both sides.
	s.mu.Lock()
	restore := s.state.Clone()
	for _, it := range srcSnapshot.Items {
		if _, failed := removedFailure(res.Failed, it.EntityID); !failed {
			continue
		}
		if s.gen[it.EntityID] != srcGens[it.EntityID] {
			continue
		}
		if !restore.Contains(it.EntityID) {
			restore.Items = append(restore.Items, it)
		}
	}
	s.setStateLocked(restore)
	s.mu.Unlock()

	target.mu.Lock()
	trestore := target.state.Clone()
	kept = trestore.Items[:0]
	for _, it := range trestore.Items {
		_, failed := removedFailure(res.Failed, it.EntityID)
		if failed && target.gen[it.EntityID] == tgtGens[it.EntityID] && !tgtSnapshot.Contains(it.EntityID) {
			continue
		}
		kept = append(kept, it)
	}
	trestore.Items = kept
	target.setStateLocked(trestore)
	target.mu.Unlock()

	return res, res.Err()
}

// runConcurrent executes op for every id on its own goroutine and returns
// the failures keyed by entity id.
func (s *Store) runConcurrent(ids []string, op func(id string) error) map[string]error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures = make(map[string]error)
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := op(id); err != nil {
				mu.Lock()
				failures[id] = err
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return failures
}

// collectOutcomes fills Succeeded and Failed in attempt order so results are
// deterministic regardless of goroutine completion order.
func (s *Store) collectOutcomes(res *BulkResult, failures map[string]error) {
	for _, id := range res.Attempted {
		if err, ok := failures[id]; ok {
			res.Failed = append(res.Failed, BulkFailure{EntityID: id, Err: err})
		} else {
			res.Succeeded = append(res.Succeeded, id)
		}
	}
}

// removedFailure looks up a failure record by entity id.
func removedFailure(failed []BulkFailure, entityID string) (BulkFailure, bool) {
	for _, f := range failed {
		if f.EntityID == entityID {
			return f, true
		}
	}
	return BulkFailure{}, false
}
