package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/bmsj23/animomart-client/internal/collection"
)

// RemoteCall records one call the store made against the fake remote.
type RemoteCall struct {
	Op       string `json:"op"`
	EntityID string `json:"entityId,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	Failed   bool   `json:"failed,omitempty"`
}

// FakeRemote is a scripted collection.Remote.
//
// Entries is the server-side collection served by Fetch. Failures are keyed
// by "op" or "op:entityID" (e.g. "update:p1", "clear"); a scripted failure
// is returned without touching server state. When Serve is true, Create and
// Update apply their effect to Entries and return the refreshed set like the
// real service does; when false they return a nil envelope, which keeps the
// store's optimistic state - convenient for rollback-focused tests.
type FakeRemote struct {
	mu       sync.Mutex
	Entries  []collection.Entry
	Catalog  map[string]collection.EntityCandidate
	Failures map[string]error
	Serve    bool
	calls    []RemoteCall
}

// NewFakeRemote creates an empty fake.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		Catalog:  make(map[string]collection.EntityCandidate),
		Failures: make(map[string]error),
	}
}

// Calls returns the recorded call log.
func (f *FakeRemote) Calls() []RemoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RemoteCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many calls of the given op were made.
func (f *FakeRemote) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// FailWith scripts a failure for "op" or "op:entityID".
func (f *FakeRemote) FailWith(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Failures[key] = err
}

func (f *FakeRemote) failure(op, entityID string) error {
	if err, ok := f.Failures[op+":"+entityID]; ok {
		return err
	}
	if err, ok := f.Failures[op]; ok {
		return err
	}
	return nil
}

func (f *FakeRemote) record(op, entityID string, qty int, failed bool) {
	f.calls = append(f.calls, RemoteCall{Op: op, EntityID: entityID, Quantity: qty, Failed: failed})
}

func (f *FakeRemote) snapshot() []collection.Entry {
	out := make([]collection.Entry, len(f.Entries))
	copy(out, f.Entries)
	return out
}

func (f *FakeRemote) find(entityID string) int {
	for i, e := range f.Entries {
		if e.EntityID == entityID {
			return i
		}
	}
	return -1
}

// Fetch implements collection.Remote.
func (f *FakeRemote) Fetch(ctx context.Context) ([]collection.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("fetch", ""); err != nil {
		f.record("fetch", "", 0, true)
		return nil, err
	}
	f.record("fetch", "", 0, false)
	return f.snapshot(), nil
}

// Create implements collection.Remote.
func (f *FakeRemote) Create(ctx context.Context, entityID string, quantity int) ([]collection.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("create", entityID); err != nil {
		f.record("create", entityID, quantity, true)
		return nil, err
	}
	f.record("create", entityID, quantity, false)
	if !f.Serve {
		return nil, nil
	}

	if i := f.find(entityID); i >= 0 {
		f.Entries[i].Quantity += quantity
		return f.snapshot(), nil
	}
	cand, ok := f.Catalog[entityID]
	if !ok {
		return nil, fmt.Errorf("fake remote: no catalog entry for %s", entityID)
	}
	f.Entries = append(f.Entries, collection.Entry{
		ItemID:   "srv-" + entityID,
		EntityID: entityID,
		Quantity: quantity,
		Entity:   &cand,
	})
	return f.snapshot(), nil
}

// Update implements collection.Remote.
func (f *FakeRemote) Update(ctx context.Context, entityID string, quantity int) ([]collection.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("update", entityID); err != nil {
		f.record("update", entityID, quantity, true)
		return nil, err
	}
	f.record("update", entityID, quantity, false)
	if !f.Serve {
		return nil, nil
	}

	if i := f.find(entityID); i >= 0 {
		f.Entries[i].Quantity = quantity
	}
	return f.snapshot(), nil
}

// Delete implements collection.Remote.
func (f *FakeRemote) Delete(ctx context.Context, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("delete", entityID); err != nil {
		f.record("delete", entityID, 0, true)
		return err
	}
	f.record("delete", entityID, 0, false)
	if i := f.find(entityID); i >= 0 {
		f.Entries = append(f.Entries[:i], f.Entries[i+1:]...)
	}
	return nil
}

// Clear implements collection.Remote.
func (f *FakeRemote) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("clear", ""); err != nil {
		f.record("clear", "", 0, true)
		return err
	}
	f.record("clear", "", 0, false)
	f.Entries = nil
	return nil
}
