package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/notification/types"
)

// Settings contains webhook-specific configuration
type Settings struct {
	URL      string            `json:"url"`
	Method   string            `json:"method,omitempty"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Notifier sends notifications to a custom webhook endpoint
type Notifier struct {
	name       string
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new webhook notifier
func New(name string, settings *Settings, httpClient *http.Client, logger *zerolog.Logger) *Notifier {
	s := *settings
	if s.Method == "" {
		s.Method = http.MethodPost
	}
	return &Notifier{
		name:       name,
		settings:   s,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "webhook").Str("name", name).Logger(),
	}
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierWebhook
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, Payload{
		EventType:    "test",
		InstanceName: instanceName,
		Message:      "Test notification from tagarr",
		Timestamp:    time.Now().UTC(),
	})
}

func (n *Notifier) OnRunSummary(ctx context.Context, event types.RunSummaryEvent) error {
	return n.send(ctx, Payload{
		EventType:    string(types.EventRunSummary),
		InstanceName: instanceName,
		Timestamp:    event.StartedAt.Add(event.Duration).UTC(),
		RunID:        event.RunID,
		DryRun:       event.DryRun,
		Summary: &PayloadSummary{
			Mode:                event.Mode,
			DurationSeconds:     event.Duration.Seconds(),
			Items:               event.Items,
			Skipped:             event.Skipped,
			Added:               event.Added,
			Removed:             event.Removed,
			LabelsCreated:       event.LabelsCreated,
			LabelsDeleted:       event.LabelsDeleted,
			NotFoundInSecondary: event.NotFoundInSecondary,
			Orphaned:            event.Orphaned,
			Discovered:          event.Discovered,
			Failures:            event.Failures,
			CategoryCounts:      event.CategoryCounts,
		},
	})
}

func (n *Notifier) OnDiscovered(ctx context.Context, event types.DiscoveredEvent) error {
	if len(event.Groups) == 0 {
		return nil
	}
	groups := make([]PayloadGroup, len(event.Groups))
	for i, g := range event.Groups {
		groups[i] = PayloadGroup{
			Token:       g.Token,
			Quality:     g.Quality,
			Audio:       g.Audio,
			FirstSeen:   g.FirstSeen,
			Occurrences: g.Occurrences,
		}
	}
	return n.send(ctx, Payload{
		EventType:    string(types.EventDiscovered),
		InstanceName: instanceName,
		Timestamp:    time.Now().UTC(),
		RunID:        event.RunID,
		DryRun:       event.DryRun,
		RulesFile:    event.RulesFile,
		Groups:       groups,
	})
}

func (n *Notifier) OnItemTagged(ctx context.Context, event types.ItemTaggedEvent) error {
	return n.send(ctx, Payload{
		EventType:    string(types.EventItemTagged),
		InstanceName: instanceName,
		Timestamp:    event.TaggedAt.UTC(),
		RunID:        event.RunID,
		DryRun:       event.DryRun,
		Movie: &PayloadMovie{
			ID:           event.Item.ID,
			Title:        event.Item.Title,
			Year:         event.Item.Year,
			TMDbID:       event.Item.TMDbID,
			SceneName:    event.Item.SceneName,
			ReleaseGroup: event.Item.ReleaseGroup,
		},
		Labels:  event.Labels,
		Added:   event.Added,
		Removed: event.Removed,
	})
}

func (n *Notifier) send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, n.settings.Method, n.settings.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if n.settings.Username != "" && n.settings.Password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(n.settings.Username + ":" + n.settings.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	for key, value := range n.settings.Headers {
		req.Header.Set(key, value)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

const instanceName = "tagarr"

// Payload is the webhook request body
type Payload struct {
	EventType    string          `json:"eventType"`
	InstanceName string          `json:"instanceName"`
	Timestamp    time.Time       `json:"timestamp"`
	Message      string          `json:"message,omitempty"`
	RunID        string          `json:"runId,omitempty"`
	DryRun       bool            `json:"dryRun,omitempty"`
	Summary      *PayloadSummary `json:"summary,omitempty"`
	RulesFile    string          `json:"rulesFile,omitempty"`
	Groups       []PayloadGroup  `json:"groups,omitempty"`
	Movie        *PayloadMovie   `json:"movie,omitempty"`
	Labels       []string        `json:"labels,omitempty"`
	Added        []string        `json:"added,omitempty"`
	Removed      []string        `json:"removed,omitempty"`
}

type PayloadSummary struct {
	Mode                string         `json:"mode"`
	DurationSeconds     float64        `json:"durationSeconds"`
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

type PayloadGroup struct {
	Token       string `json:"token"`
	Quality     string `json:"quality"`
	Audio       string `json:"audio"`
	FirstSeen   string `json:"firstSeen,omitempty"`
	Occurrences int    `json:"occurrences"`
}

type PayloadMovie struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Year         int    `json:"year,omitempty"`
	TMDbID       int64  `json:"tmdbId,omitempty"`
	SceneName    string `json:"sceneName,omitempty"`
	ReleaseGroup string `json:"releaseGroup,omitempty"`
}
