package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/match"
)

// Validate checks the configuration for values that would make every run
// fail. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, validateRegistry("primary", &c.Primary)...)
	if c.Secondary.Enabled {
		errs = append(errs, validateRegistry("secondary", &c.Secondary.RegistryConfig)...)
		if c.Secondary.Name == c.Primary.Name {
			errs = append(errs, fmt.Errorf("secondary.name must differ from primary.name (%q)", c.Primary.Name))
		}
	}

	if c.RulesFile == "" {
		errs = append(errs, errors.New("rules_file is required"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}

	for i, q := range c.Filters.Quality {
		if q.Pattern == "" {
			errs = append(errs, fmt.Errorf("filters.quality[%d]: pattern is required", i))
			continue
		}
		if err := match.Compile(q.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("filters.quality[%d] (%s): %w", i, q.Name, err))
		}
	}

	if c.Analyzer.Frames < 0 {
		errs = append(errs, fmt.Errorf("analyzer.frames must not be negative, got %d", c.Analyzer.Frames))
	}

	if c.Notifications.Discord.Enabled {
		if err := validateURL("notifications.discord.webhook_url", c.Notifications.Discord.WebhookURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Notifications.Webhook.Enabled {
		if err := validateURL("notifications.webhook.url", c.Notifications.Webhook.URL); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron %q: %w", c.Schedule.Cron, err))
		}
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil || c.Logging.Level == "" {
		errs = append(errs, fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
}

func validateRegistry(section string, r *RegistryConfig) []error {
	var errs []error
	if err := validateURL(section+".url", r.URL); err != nil {
		errs = append(errs, err)
	}
	if r.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api_key is required", section))
	}
	if r.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("%s.requests_per_second must not be negative", section))
	}
	return errs
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", key)
	}
	return nil
}
