package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// entryRing keeps the most recent log entries in a fixed-size circular
// buffer. The parsed level is stored beside each entry so reads can filter
// without parsing again.
type entryRing struct {
	mu      sync.RWMutex
	entries []Entry
	levels  []zerolog.Level
	next    int
	count   int
}

func newEntryRing(capacity int) *entryRing {
	return &entryRing{
		entries: make([]Entry, capacity),
		levels:  make([]zerolog.Level, capacity),
	}
}

// push stores e, overwriting the oldest entry once full. Entries with an
// unrecognized level are kept at NoLevel so no filter hides them.
func (r *entryRing) push(e Entry) {
	lvl, err := zerolog.ParseLevel(e.Level)
	if err != nil {
		lvl = zerolog.NoLevel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = e
	r.levels[r.next] = lvl
	r.next = (r.next + 1) % len(r.entries)
	if r.count < len(r.entries) {
		r.count++
	}
}

// tail returns up to limit of the newest entries at or above minLevel,
// oldest first. A limit of zero or less returns every match.
func (r *entryRing) tail(minLevel zerolog.Level, limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := len(r.entries)
	var newestFirst []Entry
	for i := 1; i <= r.count; i++ {
		idx := (r.next - i + size) % size
		lvl := r.levels[idx]
		if lvl != zerolog.NoLevel && lvl < minLevel {
			continue
		}
		newestFirst = append(newestFirst, r.entries[idx])
		if limit > 0 && len(newestFirst) == limit {
			break
		}
	}

	out := make([]Entry, len(newestFirst))
	for i, e := range newestFirst {
		out[len(out)-1-i] = e
	}
	return out
}

// len returns the number of stored entries.
func (r *entryRing) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
