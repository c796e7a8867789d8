// Package collection implements the optimistic mutation and reconciliation
// engine behind the AnimoMart cart and wishlist.
//
// The package keeps a client-local snapshot of a server-owned collection in
// sync with the remote marketplace service. Mutations apply locally first for
// instant feedback, bursts of rapid quantity edits coalesce into a single
// remote call, and any remote failure rolls the snapshot back to the state
// captured before the mutation (or before the burst) began.
//
// Core pieces:
//   - Store: the single owner of mutable collection state. All writers derive
//     the next state from the previous state under the Store's lock.
//   - Pending mutation tracker (tracker.go): per-entity debounce with a
//     burst-start rollback snapshot.
//   - Reconciler (reconcile.go): admits server entries into the local
//     snapshot only when their nested entity reference is fully populated.
//   - Bulk coordinator (bulk.go): multi-item remove/move as optimistic
//     transactions, per-item by default with an atomic opt-in.
//
// The cart and the wishlist are the same engine. A wishlist Store carries no
// quantities and enforces a fixed membership capacity; everything else is
// shared.
package collection
