package anomaly

import (
	"slices"
	"sync"
)

// Slot is a stable handle to one entry of a Collection. Slots survive
// reordering and refetches (entries are matched by id), so the interaction
// engine can hold one as its edit focus.
type Slot int

// NoSlot is the zero focus.
const NoSlot Slot = -1

// Item is a collection entry as seen by a reader.
type Item struct {
	Slot    Slot
	Anomaly Anomaly
	// Index is the position among visible entries; it selects the palette
	// colour. It is -1 for Normal entries and for malformed boxes.
	Index int
}

type entry struct {
	slot Slot
	a    Anomaly
}

// Collection is the ordered set of anomalies for one inspection plus the
// highlight selection. It is safe for concurrent use: the UI thread edits it
// and persistence callbacks reconcile it from other goroutines.
type Collection struct {
	mu        sync.RWMutex
	entries   []entry
	nextSlot  Slot
	highlight string
	listeners []func()
}

// NewCollection creates a collection holding list in order.
func NewCollection(list []Anomaly) *Collection {
	c := &Collection{}
	for _, a := range list {
		c.entries = append(c.entries, entry{slot: c.allocLocked(), a: a})
	}
	return c
}

func (c *Collection) allocLocked() Slot {
	s := c.nextSlot
	c.nextSlot++
	return s
}

// OnChange registers fn to be called after every mutation. Listeners run on
// the mutating goroutine, outside the lock.
func (c *Collection) OnChange(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Collection) notify() {
	c.mu.RLock()
	ls := make([]func(), len(c.listeners))
	copy(ls, c.listeners)
	c.mu.RUnlock()
	for _, fn := range ls {
		fn()
	}
}

func (c *Collection) indexLocked(slot Slot) int {
	for i, e := range c.entries {
		if e.slot == slot {
			return i
		}
	}
	return -1
}

// Len returns the number of entries, Normal included.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Add appends a and returns its slot.
func (c *Collection) Add(a Anomaly) Slot {
	c.mu.Lock()
	slot := c.allocLocked()
	c.entries = append(c.entries, entry{slot: slot, a: a})
	c.mu.Unlock()
	c.notify()
	return slot
}

// Get returns the anomaly in slot.
func (c *Collection) Get(slot Slot) (Anomaly, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(slot); i >= 0 {
		return c.entries[i].a, true
	}
	return Anomaly{}, false
}

// Update replaces the anomaly in slot. The stored id and origin are kept:
// an edit never changes who produced a record or which record it is.
func (c *Collection) Update(slot Slot, a Anomaly) (Anomaly, bool) {
	c.mu.Lock()
	i := c.indexLocked(slot)
	if i < 0 {
		c.mu.Unlock()
		return Anomaly{}, false
	}
	prev := c.entries[i].a
	a.ID = prev.ID
	a.Origin = prev.Origin
	c.entries[i].a = a
	c.mu.Unlock()
	c.notify()
	return a, true
}

// SetClass changes only the class of the anomaly in slot.
func (c *Collection) SetClass(slot Slot, class string) (Anomaly, bool) {
	a, ok := c.Get(slot)
	if !ok {
		return Anomaly{}, false
	}
	a.Class = class
	return c.Update(slot, a)
}

// AssignID records the store id of a newly created entry.
func (c *Collection) AssignID(slot Slot, id string) bool {
	c.mu.Lock()
	i := c.indexLocked(slot)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.entries[i].a.ID = id
	c.mu.Unlock()
	c.notify()
	return true
}

// Remove deletes slot and returns what it held. Removing the highlighted
// anomaly clears the highlight.
func (c *Collection) Remove(slot Slot) (Anomaly, bool) {
	c.mu.Lock()
	i := c.indexLocked(slot)
	if i < 0 {
		c.mu.Unlock()
		return Anomaly{}, false
	}
	a := c.entries[i].a
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	if a.ID != "" && a.ID == c.highlight {
		c.highlight = ""
	}
	c.mu.Unlock()
	c.notify()
	return a, true
}

// SlotByID finds the slot holding the anomaly with id.
func (c *Collection) SlotByID(id string) (Slot, bool) {
	if id == "" {
		return NoSlot, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.a.ID == id {
			return e.slot, true
		}
	}
	return NoSlot, false
}

// Replace swaps in an authoritative list, typically a refetch after a
// failed write. Entries whose id already exists keep their slot; the rest
// get new slots. Unsaved local entries are dropped unless their slot is in
// keep, in which case they stay after the list in their current order.
func (c *Collection) Replace(list []Anomaly, keep ...Slot) {
	c.mu.Lock()
	byID := make(map[string]Slot, len(c.entries))
	for _, e := range c.entries {
		if e.a.ID != "" {
			byID[e.a.ID] = e.slot
		}
	}
	next := make([]entry, 0, len(list))
	found := false
	for _, a := range list {
		slot, ok := byID[a.ID]
		if !ok || a.ID == "" {
			slot = c.allocLocked()
		} else {
			delete(byID, a.ID)
		}
		if a.ID != "" && a.ID == c.highlight {
			found = true
		}
		next = append(next, entry{slot: slot, a: a})
	}
	for _, e := range c.entries {
		if e.a.ID == "" && slices.Contains(keep, e.slot) {
			next = append(next, e)
		}
	}
	c.entries = next
	if !found {
		c.highlight = ""
	}
	c.mu.Unlock()
	c.notify()
}

// All returns every entry, Normal included, in order.
func (c *Collection) All() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, 0, len(c.entries))
	vis := 0
	for _, e := range c.entries {
		idx := -1
		if !e.a.Normal() && e.a.Box.Valid() {
			idx = vis
			vis++
		}
		out = append(out, Item{Slot: e.slot, Anomaly: e.a, Index: idx})
	}
	return out
}

// Anomalies returns a copy of the stored anomalies, Normal included.
func (c *Collection) Anomalies() []Anomaly {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Anomaly, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.a)
	}
	return out
}

// Visible returns the entries that are drawn: everything except Normal and
// malformed boxes, in order, with Index set to the visible position.
func (c *Collection) Visible() []Item {
	all := c.All()
	out := all[:0]
	for _, it := range all {
		if it.Index >= 0 {
			out = append(out, it)
		}
	}
	return out
}

// Highlighted returns the highlighted id, or "".
func (c *Collection) Highlighted() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.highlight
}

// ToggleHighlight highlights id, or clears the highlight if id is already
// highlighted. Ids not in the collection, and the empty id, are ignored.
// It returns the highlighted id afterwards.
func (c *Collection) ToggleHighlight(id string) string {
	if id == "" {
		return c.Highlighted()
	}
	c.mu.Lock()
	switch {
	case c.highlight == id:
		c.highlight = ""
	case c.hasIDLocked(id):
		c.highlight = id
	default:
		h := c.highlight
		c.mu.Unlock()
		return h
	}
	h := c.highlight
	c.mu.Unlock()
	c.notify()
	return h
}

// ClearHighlight removes any highlight.
func (c *Collection) ClearHighlight() {
	c.mu.Lock()
	changed := c.highlight != ""
	c.highlight = ""
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

func (c *Collection) hasIDLocked(id string) bool {
	for _, e := range c.entries {
		if e.a.ID == id {
			return true
		}
	}
	return false
}

// ClassCounts counts visible anomalies per class.
func (c *Collection) ClassCounts() map[string]int {
	counts := make(map[string]int)
	for _, it := range c.Visible() {
		counts[it.Anomaly.Class]++
	}
	return counts
}
