// Package harness runs conformance scenarios for the collection engine.
//
// A scenario wires a store to a scripted fake remote and deterministic
// debounce timers, executes a step sequence, and records a trace of every
// remote call and resulting state. Traces are compared against golden files
// so regressions in coalescing, rollback, or reconciliation show up as
// readable diffs.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmsj23/animomart-client/internal/collection"
	"github.com/bmsj23/animomart-client/internal/testutil"
)

// TraceEvent records one step: the remote calls it triggered, any surfaced
// errors, and the collection state after the step.
type TraceEvent struct {
	Step    string                `json:"step"`
	Error   string                `json:"error,omitempty"`
	Calls   []testutil.RemoteCall `json:"calls,omitempty"`
	Items   []TraceItem           `json:"items"`
	Invalid int                   `json:"invalid,omitempty"`
}

// TraceItem is the trace view of one collection item.
type TraceItem struct {
	Entity   string `json:"entity"`
	Quantity int    `json:"quantity"`
}

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	store    *collection.Store
	remote   *testutil.FakeRemote
	timers   *testutil.ManualTimers

	trace    []TraceEvent
	lastCall int
	notified []error
}

// New builds the store, fake remote, and timers for a scenario.
func New(s *Scenario) *Harness {
	h := &Harness{
		scenario: s,
		remote:   testutil.NewFakeRemote(),
		timers:   testutil.NewManualTimers(),
	}
	for _, si := range s.Server.Items {
		h.remote.Entries = append(h.remote.Entries, si.entry())
	}
	for _, key := range s.Server.Fail {
		h.remote.FailWith(key, errors.New("injected failure"))
	}

	opts := []collection.Option{
		collection.WithTimers(h.timers),
		collection.WithNotifier(func(err error) { h.notified = append(h.notified, err) }),
	}
	if s.Capacity > 0 {
		opts = append(opts, collection.WithCapacity(s.Capacity))
	}
	h.store = collection.New(collection.Kind(s.Kind), "owner-1", h.remote, opts...)
	return h
}

// RunFile loads the scenario at path, executes it, applies its assertions,
// and compares the trace against the scenario's golden file.
func RunFile(t *testing.T, path string) {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)

	h := New(s)
	h.Run(t)
	h.Assert(t)

	g := goldie.New(t)
	g.AssertJson(t, s.Name, h.trace)
}

// Run executes every step, recording a trace event per step.
func (h *Harness) Run(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	for _, step := range h.scenario.Steps {
		var stepErr error

		switch step.Op {
		case "load":
			stepErr = h.store.Load(ctx)
		case "add":
			qty := step.Quantity
			if qty == 0 {
				qty = 1
			}
			stepErr = h.store.Add(ctx, step.Entity, qty)
		case "set":
			stepErr = h.store.UpdateQuantity(ctx, step.Entity, step.Quantity)
		case "remove":
			stepErr = h.store.Remove(ctx, step.Entity)
		case "clear":
			stepErr = h.store.Clear(ctx)
		case "fire":
			h.timers.Fire()
		case "flush":
			stepErr = h.store.Flush(ctx)
		case "bulk-remove":
			res := h.store.RemoveBatch(ctx, step.Entities, collection.BulkOptions{Atomic: step.Atomic})
			stepErr = res.Err()
		default:
			t.Fatalf("scenario %s: unknown op %q", h.scenario.Name, step.Op)
		}

		h.record(step, stepErr)
	}
}

// Assert applies the scenario's assertions against the finished run.
func (h *Harness) Assert(t *testing.T) {
	t.Helper()
	for _, a := range h.scenario.Assertions {
		switch a.Type {
		case "call_count":
			assert.Equal(t, a.Count, h.remote.CallCount(a.Op),
				"call count for %q", a.Op)
		case "final_items":
			snap := h.store.Snapshot()
			require.Len(t, snap.Items, len(a.Items))
			for i, want := range a.Items {
				assert.Equal(t, want.Entity, snap.Items[i].EntityID)
				if want.Quantity > 0 {
					assert.Equal(t, want.Quantity, snap.Items[i].Quantity)
				}
			}
		case "invalid_count":
			assert.Len(t, h.store.InvalidEntries(), a.Count)
		default:
			t.Fatalf("scenario %s: unknown assertion type %q", h.scenario.Name, a.Type)
		}
	}
}

// record appends the trace event for one executed step.
func (h *Harness) record(step Step, stepErr error) {
	all := h.remote.Calls()
	delta := make([]testutil.RemoteCall, len(all[h.lastCall:]))
	copy(delta, all[h.lastCall:])
	h.lastCall = len(all)

	// Bulk steps issue their calls concurrently; sort the step's calls so
	// traces stay deterministic.
	sort.SliceStable(delta, func(i, j int) bool {
		if delta[i].EntityID != delta[j].EntityID {
			return delta[i].EntityID < delta[j].EntityID
		}
		return delta[i].Op < delta[j].Op
	})

	errs := make([]string, 0, len(h.notified)+1)
	if stepErr != nil {
		errs = append(errs, stepErr.Error())
	}
	for _, err := range h.notified {
		errs = append(errs, err.Error())
	}
	h.notified = h.notified[:0]

	snap := h.store.Snapshot()
	items := make([]TraceItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, TraceItem{Entity: it.EntityID, Quantity: it.Quantity})
	}

	h.trace = append(h.trace, TraceEvent{
		Step:    h.label(step),
		Error:   strings.Join(errs, "; "),
		Calls:   delta,
		Items:   items,
		Invalid: len(h.store.InvalidEntries()),
	})
}

// label renders a step for the trace.
func (h *Harness) label(step Step) string {
	switch step.Op {
	case "add", "set":
		qty := step.Quantity
		if step.Op == "add" && qty == 0 {
			qty = 1
		}
		return fmt.Sprintf("%s %s q=%d", step.Op, step.Entity, qty)
	case "remove":
		return "remove " + step.Entity
	case "bulk-remove":
		label := "bulk-remove " + strings.Join(step.Entities, ",")
		if step.Atomic {
			label += " atomic"
		}
		return label
	default:
		return step.Op
	}
}
