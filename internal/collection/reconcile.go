package collection

// Admission reasons recorded on InvalidEntry. An entry is admissible iff it
// has a non-nil entity reference carrying an id, a name, and a price.
const (
	ReasonNilEntity    = "entity reference is missing"
	ReasonMissingID    = "entity reference has no id"
	ReasonMissingName  = "entity reference has no name"
	ReasonMissingPrice = "entity reference has no price"
)

// Admission is the reconciler's verdict on a single server entry: either an
// admitted Item or a rejection reason, never both. Consumers branch on OK
// instead of re-checking nullable fields downstream.
type Admission struct {
	OK     bool
	Item   Item
	Reason string
}

// Classify produces the admission verdict for one raw entry.
//
// Rejected entries are excluded from the active collection and recorded as
// diagnostics only. The engine never deletes a stale reference server-side -
// that is an explicit decision left to the surrounding application.
func Classify(e Entry) Admission {
	switch {
	case e.Entity == nil:
		return Admission{Reason: ReasonNilEntity}
	case e.Entity.ID == "":
		return Admission{Reason: ReasonMissingID}
	case e.Entity.Name == "":
		return Admission{Reason: ReasonMissingName}
	case e.Entity.Price == nil:
		return Admission{Reason: ReasonMissingPrice}
	}

	qty := e.Quantity
	if qty < 1 {
		qty = 1
	}

	var stock *int
	if e.Entity.Stock != nil {
		s := *e.Entity.Stock
		stock = &s
	}

	return Admission{
		OK: true,
		Item: Item{
			ItemID:   e.ItemID,
			EntityID: e.EntityID,
			Quantity: qty,
			Entity: EntityRef{
				ID:     e.Entity.ID,
				Name:   e.Entity.Name,
				Price:  *e.Entity.Price,
				Stock:  stock,
				Image:  e.Entity.Image,
				Vendor: e.Entity.Vendor,
			},
			AddedAt: e.AddedAt,
		},
	}
}

// Reconcile splits a server entry set into admitted items and invalid-entry
// diagnostics, preserving server order. The same rule runs after every load,
// create, and update response.
//
// Entries whose EntityID duplicates an earlier admitted item are dropped to
// uphold the no-duplicate-entity invariant; the first occurrence wins.
func Reconcile(entries []Entry) ([]Item, []InvalidEntry) {
	items := make([]Item, 0, len(entries))
	var invalid []InvalidEntry
	seen := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		v := Classify(e)
		if !v.OK {
			invalid = append(invalid, InvalidEntry{
				ItemID:   e.ItemID,
				EntityID: e.EntityID,
				Reason:   v.Reason,
			})
			continue
		}
		if _, dup := seen[v.Item.EntityID]; dup {
			continue
		}
		seen[v.Item.EntityID] = struct{}{}
		items = append(items, v.Item)
	}

	return items, invalid
}
