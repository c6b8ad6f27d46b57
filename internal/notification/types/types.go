// Package types contains shared type definitions for notification packages.
package types

import (
	"context"
	"time"
)

// NotifierType identifies a notification provider
type NotifierType string

const (
	NotifierDiscord NotifierType = "discord"
	NotifierWebhook NotifierType = "webhook"
	NotifierMock    NotifierType = "mock"
)

// Notifier is the interface all notification providers must implement
type Notifier interface {
	Type() NotifierType
	Name() string
	Test(ctx context.Context) error

	OnRunSummary(ctx context.Context, event RunSummaryEvent) error
	OnDiscovered(ctx context.Context, event DiscoveredEvent) error
	OnItemTagged(ctx context.Context, event ItemTaggedEvent) error
}

// EventType identifies the type of notification event
type EventType string

const (
	EventRunSummary EventType = "run_summary"
	EventDiscovered EventType = "discovered"
	EventItemTagged EventType = "item_tagged"
)

// ItemInfo identifies a library item in events
type ItemInfo struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Year         int    `json:"year,omitempty"`
	TMDbID       int64  `json:"tmdbId,omitempty"`
	SceneName    string `json:"sceneName,omitempty"`
	ReleaseGroup string `json:"releaseGroup,omitempty"`
}

// RunSummaryEvent is sent at the end of a batch run
type RunSummaryEvent struct {
	RunID               string         `json:"runId"`
	Mode                string         `json:"mode"`
	DryRun              bool           `json:"dryRun"`
	StartedAt           time.Time      `json:"startedAt"`
	Duration            time.Duration  `json:"duration"`
	Items               int            `json:"items"`
	Skipped             int            `json:"skipped"`
	Added               int            `json:"added"`
	Removed             int            `json:"removed"`
	LabelsCreated       int            `json:"labelsCreated"`
	LabelsDeleted       int            `json:"labelsDeleted"`
	NotFoundInSecondary int            `json:"notFoundInSecondary"`
	Orphaned            int            `json:"orphaned"`
	Discovered          int            `json:"discovered"`
	Failures            int            `json:"failures"`
	CategoryCounts      map[string]int `json:"categoryCounts,omitempty"`
}

// DiscoveredGroup is one release group found by discovery
type DiscoveredGroup struct {
	Token       string `json:"token"`
	Quality     string `json:"quality"`
	Audio       string `json:"audio"`
	FirstSeen   string `json:"firstSeen"`
	Occurrences int    `json:"occurrences"`
}

// DiscoveredEvent is sent when discovery found new release groups
type DiscoveredEvent struct {
	RunID     string            `json:"runId"`
	DryRun    bool              `json:"dryRun"`
	RulesFile string            `json:"rulesFile"`
	Groups    []DiscoveredGroup `json:"groups"`
}

// ItemTaggedEvent is sent on the single-item path after reconciliation
type ItemTaggedEvent struct {
	RunID    string    `json:"runId"`
	DryRun   bool      `json:"dryRun"`
	Item     ItemInfo  `json:"item"`
	Labels   []string  `json:"labels"`
	Added    []string  `json:"added,omitempty"`
	Removed  []string  `json:"removed,omitempty"`
	TaggedAt time.Time `json:"taggedAt"`
}
