package reconcile

import (
	"sort"

	"github.com/tagarr/tagarr/internal/registry"
)

// LabelKey identifies a category within one registry.
type LabelKey struct {
	Registry string
	Category string
}

// BatchKey groups items that receive the same edit.
type BatchKey struct {
	LabelKey
	Op registry.Op
}

// Batch accumulates item ids per edit. Each item appears at most once per key.
type Batch struct {
	items map[BatchKey][]int64
	seen  map[BatchKey]map[int64]struct{}
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{
		items: make(map[BatchKey][]int64),
		seen:  make(map[BatchKey]map[int64]struct{}),
	}
}

// Queue adds itemID to the edit identified by key. It returns false if the
// item was already queued for that key.
func (b *Batch) Queue(key BatchKey, itemID int64) bool {
	seen, ok := b.seen[key]
	if !ok {
		seen = make(map[int64]struct{})
		b.seen[key] = seen
	}
	if _, dup := seen[itemID]; dup {
		return false
	}
	seen[itemID] = struct{}{}
	b.items[key] = append(b.items[key], itemID)
	return true
}

// Has reports whether itemID is queued under key.
func (b *Batch) Has(key BatchKey, itemID int64) bool {
	_, ok := b.seen[key][itemID]
	return ok
}

// Items returns the ids queued under key.
func (b *Batch) Items(key BatchKey) []int64 {
	return b.items[key]
}

// Keys returns every key in apply order: registry, then category, then op.
func (b *Batch) Keys() []BatchKey {
	keys := make([]BatchKey, 0, len(b.items))
	for k := range b.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, c := keys[i], keys[j]
		if a.Registry != c.Registry {
			return a.Registry < c.Registry
		}
		if a.Category != c.Category {
			return a.Category < c.Category
		}
		return a.Op < c.Op
	})
	return keys
}

// Len returns the number of distinct edits.
func (b *Batch) Len() int {
	return len(b.items)
}

// Pending returns the total number of queued item edits.
func (b *Batch) Pending() int {
	n := 0
	for _, ids := range b.items {
		n += len(ids)
	}
	return n
}

func chunk(ids []int64, size int) [][]int64 {
	if size <= 0 || len(ids) <= size {
		return [][]int64{ids}
	}
	var out [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
