// Package mock provides an in-memory notifier that records every event it
// receives. It backs dry runs of the notification config and tests.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/notification/types"
)

// NotificationRecord stores a sent notification
type NotificationRecord struct {
	ID        int64           `json:"id"`
	EventType types.EventType `json:"eventType"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      any             `json:"data,omitempty"`
	SentAt    time.Time       `json:"sentAt"`
}

// Notifier is a mock notification provider.
type Notifier struct {
	name   string
	logger zerolog.Logger

	// Err, when set, is returned from every call after the event is recorded.
	Err error

	mu         sync.RWMutex
	records    []NotificationRecord
	nextID     int64
	maxRecords int
}

// New creates a new mock notifier
func New(name string, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		name:       name,
		logger:     logger.With().Str("notifier", "mock").Str("name", name).Logger(),
		records:    make([]NotificationRecord, 0),
		nextID:     1,
		maxRecords: 100,
	}
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierMock
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	n.record("test", "Test Notification", "This is a test notification from the mock notifier", nil)
	return n.Err
}

func (n *Notifier) OnRunSummary(ctx context.Context, event types.RunSummaryEvent) error {
	msg := fmt.Sprintf("%d items, +%d/-%d labels, %d failures", event.Items, event.Added, event.Removed, event.Failures)
	n.record(types.EventRunSummary, "Tagging Run Complete", msg, event)
	return n.Err
}

func (n *Notifier) OnDiscovered(ctx context.Context, event types.DiscoveredEvent) error {
	msg := fmt.Sprintf("%d new release group(s)", len(event.Groups))
	n.record(types.EventDiscovered, "Release Groups Discovered", msg, event)
	return n.Err
}

func (n *Notifier) OnItemTagged(ctx context.Context, event types.ItemTaggedEvent) error {
	n.record(types.EventItemTagged, "Movie Tagged", event.Item.Title, event)
	return n.Err
}

func (n *Notifier) record(eventType types.EventType, title, message string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rec := NotificationRecord{
		ID:        n.nextID,
		EventType: eventType,
		Title:     title,
		Message:   message,
		Data:      data,
		SentAt:    time.Now(),
	}
	n.nextID++

	n.records = append(n.records, rec)
	if len(n.records) > n.maxRecords {
		n.records = n.records[len(n.records)-n.maxRecords:]
	}

	n.logger.Info().
		Str("eventType", string(eventType)).
		Str("title", title).
		Str("message", message).
		Msg("Mock notification sent")
}

// Records returns a copy of all recorded notifications, oldest first
func (n *Notifier) Records() []NotificationRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]NotificationRecord, len(n.records))
	copy(out, n.records)
	return out
}

// Count returns how many notifications of the given type were recorded
func (n *Notifier) Count(eventType types.EventType) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	count := 0
	for _, r := range n.records {
		if r.EventType == eventType {
			count++
		}
	}
	return count
}

// Clear removes all stored records
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = make([]NotificationRecord, 0)
}
