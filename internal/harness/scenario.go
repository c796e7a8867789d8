package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bmsj23/animomart-client/internal/collection"
)

// Scenario describes one conformance scenario: a scripted remote service,
// a sequence of store operations, and assertions on the calls and the final
// state. Scenarios live as YAML files under testdata/scenarios.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty"`

	// Kind selects the collection flavor: "cart" or "wishlist".
	Kind string `yaml:"kind"`

	// Capacity overrides the wishlist capacity. Zero keeps the default.
	Capacity int `yaml:"capacity,omitempty"`

	// Server scripts the fake remote.
	Server ServerScript `yaml:"server"`

	// Steps is the operation sequence.
	Steps []Step `yaml:"steps"`

	// Assertions validate call counts and final state after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ServerScript is the initial server-side collection plus scripted failures.
type ServerScript struct {
	// Items is the collection served by the first fetch.
	Items []ServerItem `yaml:"items,omitempty"`

	// Fail lists failing operations, keyed "op" or "op:entity"
	// (e.g. "update:p1", "clear"). Failed calls leave server state alone.
	Fail []string `yaml:"fail,omitempty"`
}

// ServerItem is one served entry. Missing marks a stale reference: the entry
// is served with a null product so the reconciler must reject it.
type ServerItem struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name,omitempty"`
	Price    *float64 `yaml:"price,omitempty"`
	Stock    *int     `yaml:"stock,omitempty"`
	Quantity int      `yaml:"quantity,omitempty"`
	Missing  bool     `yaml:"missing,omitempty"`
}

// entry converts the scripted item to a wire entry.
func (si ServerItem) entry() collection.Entry {
	e := collection.Entry{
		ItemID:   "srv-" + si.ID,
		EntityID: si.ID,
		Quantity: si.Quantity,
	}
	if !si.Missing {
		e.Entity = &collection.EntityCandidate{
			ID:    si.ID,
			Name:  si.Name,
			Price: si.Price,
			Stock: si.Stock,
		}
	}
	return e
}

// Step is one operation against the store.
//
// Ops: "load", "add", "set", "remove", "clear", "fire" (run armed debounce
// timers), "flush", "bulk-remove".
type Step struct {
	Op       string   `yaml:"op"`
	Entity   string   `yaml:"entity,omitempty"`
	Quantity int      `yaml:"quantity,omitempty"`
	Entities []string `yaml:"entities,omitempty"`
	Atomic   bool     `yaml:"atomic,omitempty"`
}

// Assertion validates the run after the last step.
//
// Types:
//   - "call_count": the op was called exactly Count times across the run
//   - "final_items": the final collection holds exactly Items, in order
//   - "invalid_count": the diagnostic list holds exactly Count entries
type Assertion struct {
	Type  string         `yaml:"type"`
	Op    string         `yaml:"op,omitempty"`
	Count int            `yaml:"count,omitempty"`
	Items []ExpectedItem `yaml:"items,omitempty"`
}

// ExpectedItem is one expected final collection entry.
type ExpectedItem struct {
	Entity   string `yaml:"entity"`
	Quantity int    `yaml:"quantity,omitempty"`
}

// LoadScenario reads and decodes one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("load scenario %s: name is required", path)
	}
	if s.Kind != string(collection.KindCart) && s.Kind != string(collection.KindWishlist) {
		return nil, fmt.Errorf("load scenario %s: kind must be cart or wishlist", path)
	}
	return &s, nil
}
