package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/notification/types"
)

// Discord embed colors
const (
	ColorSuccess = 0x2ECC71 // Green
	ColorWarning = 0xF1C40F // Yellow
	ColorDanger  = 0xE74C3C // Red
	ColorInfo    = 0x3498DB // Blue
	ColorDefault = 0x7289DA // Discord blurple
)

// maxEmbedFields is Discord's limit on fields per embed.
const maxEmbedFields = 25

// Settings contains Discord-specific configuration
type Settings struct {
	WebhookURL string `json:"webhookUrl"`
	Username   string `json:"username,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// Notifier sends notifications to Discord via webhook
type Notifier struct {
	name       string
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new Discord notifier
func New(name string, settings *Settings, httpClient *http.Client, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		name:       name,
		settings:   *settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "discord").Str("name", name).Logger(),
	}
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierDiscord
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, n.buildPayload(Embed{
		Title:       "tagarr Test Notification",
		Description: "This is a test notification from tagarr.",
		Color:       ColorInfo,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}))
}

func (n *Notifier) OnRunSummary(ctx context.Context, event types.RunSummaryEvent) error {
	title := "Tagging Run Complete"
	if event.DryRun {
		title += " (dry run)"
	}

	color := ColorSuccess
	if event.Failures > 0 {
		color = ColorWarning
	}

	fields := []EmbedField{
		{Name: "Items", Value: fmt.Sprintf("%d", event.Items), Inline: true},
		{Name: "Added", Value: fmt.Sprintf("%d", event.Added), Inline: true},
		{Name: "Removed", Value: fmt.Sprintf("%d", event.Removed), Inline: true},
	}
	if event.LabelsCreated > 0 || event.LabelsDeleted > 0 {
		fields = append(fields,
			EmbedField{Name: "Labels Created", Value: fmt.Sprintf("%d", event.LabelsCreated), Inline: true},
			EmbedField{Name: "Labels Deleted", Value: fmt.Sprintf("%d", event.LabelsDeleted), Inline: true},
		)
	}
	if event.NotFoundInSecondary > 0 || event.Orphaned > 0 {
		fields = append(fields,
			EmbedField{Name: "Not In Secondary", Value: fmt.Sprintf("%d", event.NotFoundInSecondary), Inline: true},
			EmbedField{Name: "Orphaned", Value: fmt.Sprintf("%d", event.Orphaned), Inline: true},
		)
	}
	if event.Discovered > 0 {
		fields = append(fields, EmbedField{Name: "Discovered", Value: fmt.Sprintf("%d", event.Discovered), Inline: true})
	}
	if event.Failures > 0 {
		fields = append(fields, EmbedField{Name: "Failures", Value: fmt.Sprintf("%d", event.Failures), Inline: true})
	}
	if counts := formatCounts(event.CategoryCounts); counts != "" {
		fields = append(fields, EmbedField{Name: "Categories", Value: truncate(counts, 1024)})
	}

	return n.send(ctx, n.buildPayload(Embed{
		Title:       title,
		Description: fmt.Sprintf("Finished in %s", event.Duration.Round(time.Second)),
		Color:       color,
		Fields:      fields,
		Footer:      &EmbedFooter{Text: "Run " + event.RunID},
		Timestamp:   event.StartedAt.Add(event.Duration).UTC().Format(time.RFC3339),
	}))
}

func (n *Notifier) OnDiscovered(ctx context.Context, event types.DiscoveredEvent) error {
	if len(event.Groups) == 0 {
		return nil
	}

	var fields []EmbedField
	for i, g := range event.Groups {
		if i == maxEmbedFields-1 && len(event.Groups) > maxEmbedFields {
			fields = append(fields, EmbedField{Name: "...", Value: fmt.Sprintf("%d more", len(event.Groups)-i)})
			break
		}
		fields = append(fields, EmbedField{
			Name:  g.Token,
			Value: truncate(fmt.Sprintf("%s / %s, seen %dx (first: %s)", g.Quality, g.Audio, g.Occurrences, g.FirstSeen), 1024),
		})
	}

	description := fmt.Sprintf("Added as inactive rules to `%s` for review.", event.RulesFile)
	if event.DryRun {
		description = "Dry run: rules file not modified."
	}

	return n.send(ctx, n.buildPayload(Embed{
		Title:       fmt.Sprintf("%d New Release Group(s) Discovered", len(event.Groups)),
		Description: description,
		Color:       ColorInfo,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}))
}

func (n *Notifier) OnItemTagged(ctx context.Context, event types.ItemTaggedEvent) error {
	title := event.Item.Title
	if event.Item.Year > 0 {
		title = fmt.Sprintf("%s (%d)", event.Item.Title, event.Item.Year)
	}

	var fields []EmbedField
	if len(event.Labels) > 0 {
		fields = append(fields, EmbedField{Name: "Labels", Value: strings.Join(event.Labels, ", ")})
	}
	if len(event.Added) > 0 {
		fields = append(fields, EmbedField{Name: "Added", Value: strings.Join(event.Added, ", "), Inline: true})
	}
	if len(event.Removed) > 0 {
		fields = append(fields, EmbedField{Name: "Removed", Value: strings.Join(event.Removed, ", "), Inline: true})
	}
	if event.Item.ReleaseGroup != "" {
		fields = append(fields, EmbedField{Name: "Release Group", Value: event.Item.ReleaseGroup, Inline: true})
	}

	var description string
	if event.Item.SceneName != "" {
		description = fmt.Sprintf("`%s`", event.Item.SceneName)
	}

	embed := Embed{
		Title:       "Movie Tagged - " + title,
		Description: description,
		Color:       ColorDefault,
		Fields:      fields,
		Timestamp:   event.TaggedAt.UTC().Format(time.RFC3339),
	}
	if event.Item.TMDbID > 0 {
		embed.URL = fmt.Sprintf("https://www.themoviedb.org/movie/%d", event.Item.TMDbID)
	}
	if event.DryRun {
		embed.Footer = &EmbedFooter{Text: "dry run"}
	}
	return n.send(ctx, n.buildPayload(embed))
}

func (n *Notifier) buildPayload(embed Embed) WebhookPayload {
	return WebhookPayload{
		Username:  n.getUsername(),
		AvatarURL: n.settings.AvatarURL,
		Embeds:    []Embed{embed},
	}
}

func (n *Notifier) getUsername() string {
	if n.settings.Username != "" {
		return n.settings.Username
	}
	return "tagarr"
}

func (n *Notifier) send(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord returned status %d", resp.StatusCode)
	}

	return nil
}

// WebhookPayload is the Discord webhook request body
type WebhookPayload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord embed object
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is a field in an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer section of an embed
type EmbedFooter struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
