package notification

import (
	"time"

	"github.com/tagarr/tagarr/internal/notification/discord"
	"github.com/tagarr/tagarr/internal/notification/types"
	"github.com/tagarr/tagarr/internal/notification/webhook"
)

// Re-export types from the types sub-package
type (
	NotifierType = types.NotifierType
	Notifier     = types.Notifier
	EventType    = types.EventType

	ItemInfo        = types.ItemInfo
	RunSummaryEvent = types.RunSummaryEvent
	DiscoveredGroup = types.DiscoveredGroup
	DiscoveredEvent = types.DiscoveredEvent
	ItemTaggedEvent = types.ItemTaggedEvent
)

// Re-export constants
const (
	NotifierDiscord = types.NotifierDiscord
	NotifierWebhook = types.NotifierWebhook
	NotifierMock    = types.NotifierMock

	EventRunSummary = types.EventRunSummary
	EventDiscovered = types.EventDiscovered
	EventItemTagged = types.EventItemTagged
)

// Config is the notifications section of the application config
type Config struct {
	Discord  DiscordConfig `mapstructure:"discord"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
	NotifyOn NotifyOn      `mapstructure:"notify_on"`
}

// DiscordConfig configures the Discord notifier
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
	AvatarURL  string `mapstructure:"avatar_url"`
}

// WebhookConfig configures the generic JSON webhook notifier
type WebhookConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	URL      string            `mapstructure:"url"`
	Method   string            `mapstructure:"method"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Headers  map[string]string `mapstructure:"headers"`
}

// NotifyOn selects which events are sent
type NotifyOn struct {
	RunSummary bool `mapstructure:"run_summary"`
	Discovered bool `mapstructure:"discovered"`
	ItemTagged bool `mapstructure:"item_tagged"`
}

// Subscribes reports whether the event type is enabled
func (n NotifyOn) Subscribes(eventType EventType) bool {
	switch eventType {
	case EventRunSummary:
		return n.RunSummary
	case EventDiscovered:
		return n.Discovered
	case EventItemTagged:
		return n.ItemTagged
	default:
		return false
	}
}

func (c DiscordConfig) settings() *discord.Settings {
	return &discord.Settings{WebhookURL: c.WebhookURL, Username: c.Username, AvatarURL: c.AvatarURL}
}

func (c WebhookConfig) settings() *webhook.Settings {
	return &webhook.Settings{URL: c.URL, Method: c.Method, Username: c.Username, Password: c.Password, Headers: c.Headers}
}

// Status tracks notifier failures for backoff logic
type Status struct {
	InitialFailure    time.Time `json:"initialFailure"`
	MostRecentFailure time.Time `json:"mostRecentFailure"`
	EscalationLevel   int       `json:"escalationLevel"`
	DisabledTill      time.Time `json:"disabledTill"`
}

// TestResult contains the result of testing a notifier
type TestResult struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
