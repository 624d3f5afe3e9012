package crawl

import "sync"

// Deduplicator tracks item ids admitted into the run's result set. Admit is
// safe under concurrent calls from every keyword task in phase 1; Items
// yields the stabilized first-seen-ordered view that seeds phase 2.
type Deduplicator struct {
	seen  sync.Map
	mu    sync.Mutex
	items []ItemSummary
}

// NewDeduplicator creates an empty Deduplicator for one run.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Admit records the item on first occurrence and returns true; every later
// occurrence of the same id returns false. Items without an id are rejected.
func (d *Deduplicator) Admit(item ItemSummary) bool {
	if item.ItemID == "" {
		return false
	}
	if _, loaded := d.seen.LoadOrStore(item.ItemID, struct{}{}); loaded {
		return false
	}
	d.mu.Lock()
	d.items = append(d.items, item)
	d.mu.Unlock()
	return true
}

// Items returns a copy of the admitted items in first-seen order. Stragglers
// abandoned past their timeout may still call Admit afterwards; the copy
// keeps the phase-2 input stable regardless.
func (d *Deduplicator) Items() []ItemSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ItemSummary, len(d.items))
	copy(out, d.items)
	return out
}

// Size reports how many unique items have been admitted so far.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
