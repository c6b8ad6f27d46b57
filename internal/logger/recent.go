package logger

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

const defaultBufferSize = 500

// EntryMessageType is the broadcast type of a log entry.
const EntryMessageType = "logs:entry"

// Entry is a parsed log entry kept for the status API.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Broadcaster receives every entry as it is written.
type Broadcaster interface {
	Broadcast(msgType string, payload any)
}

// Recent is an io.Writer that keeps the last entries zerolog writes and
// forwards them to an optional Broadcaster.
type Recent struct {
	buffer *entryRing

	mu  sync.RWMutex
	hub Broadcaster
}

// NewRecent creates a buffer holding up to size entries.
func NewRecent(size int) *Recent {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Recent{buffer: newEntryRing(size)}
}

// SetHub sets the broadcaster for new entries. Nil disables broadcasting.
func (r *Recent) SetHub(hub Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hub = hub
}

// Write implements io.Writer. It receives JSON log entries from zerolog.
func (r *Recent) Write(p []byte) (int, error) {
	entry, err := parseEntry(p)
	if err != nil {
		return len(p), nil //nolint:nilerr // malformed entries are dropped
	}
	r.buffer.push(entry)

	r.mu.RLock()
	hub := r.hub
	r.mu.RUnlock()
	if hub != nil {
		hub.Broadcast(EntryMessageType, entry)
	}
	return len(p), nil
}

// Entries returns buffered entries at or above minLevel, oldest first.
// An empty or unparseable minLevel returns everything.
func (r *Recent) Entries(minLevel string) []Entry {
	return r.Tail(minLevel, 0)
}

// Tail is Entries limited to the newest limit matches. A limit of zero or
// less means no limit.
func (r *Recent) Tail(minLevel string, limit int) []Entry {
	threshold, err := zerolog.ParseLevel(minLevel)
	if err != nil || minLevel == "" {
		threshold = zerolog.TraceLevel
	}
	return r.buffer.tail(threshold, limit)
}

// Len returns the number of buffered entries.
func (r *Recent) Len() int {
	return r.buffer.len()
}

func parseEntry(data []byte) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, err
	}

	entry := Entry{}
	take := func(key string) string {
		s, _ := raw[key].(string)
		delete(raw, key)
		return s
	}
	entry.Timestamp = take(zerolog.TimestampFieldName)
	entry.Level = take(zerolog.LevelFieldName)
	entry.Component = take("component")
	entry.Message = take(zerolog.MessageFieldName)
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, nil
}
