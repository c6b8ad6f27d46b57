package notification

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/notification/discord"
	"github.com/tagarr/tagarr/internal/notification/webhook"
)

var ErrInvalidSettings = errors.New("invalid notification settings")

// Factory creates Notifier instances from Config
type Factory struct {
	httpClient *http.Client
	logger     *zerolog.Logger
}

// NewFactory creates a new notification factory
func NewFactory(logger *zerolog.Logger) *Factory {
	return &Factory{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Create builds every enabled notifier in cfg
func (f *Factory) Create(cfg *Config) ([]Notifier, error) {
	var notifiers []Notifier
	if cfg.Discord.Enabled {
		if cfg.Discord.WebhookURL == "" {
			return nil, errors.Join(ErrInvalidSettings, errors.New("discord: webhook_url is required"))
		}
		notifiers = append(notifiers, discord.New("discord", cfg.Discord.settings(), f.httpClient, f.logger))
	}
	if cfg.Webhook.Enabled {
		if cfg.Webhook.URL == "" {
			return nil, errors.Join(ErrInvalidSettings, errors.New("webhook: url is required"))
		}
		notifiers = append(notifiers, webhook.New("webhook", cfg.Webhook.settings(), f.httpClient, f.logger))
	}
	return notifiers, nil
}
