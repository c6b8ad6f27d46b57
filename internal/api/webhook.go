package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tagarr/tagarr/internal/metrics"
	"github.com/tagarr/tagarr/internal/registry"
	"github.com/tagarr/tagarr/internal/tagging"
)

// Radarr webhook event types.
const (
	EventTest            = "Test"
	EventDownload        = "Download"
	EventMovieAdded      = "MovieAdded"
	EventRename          = "Rename"
	EventMovieFileDelete = "MovieFileDelete"
)

// taggableEvents change the file or metadata an item's labels derive from.
var taggableEvents = map[string]bool{
	EventDownload:        true,
	EventMovieAdded:      true,
	EventRename:          true,
	EventMovieFileDelete: true,
}

// IsTaggableEvent reports whether a Radarr event should re-tag its movie.
func IsTaggableEvent(event string) bool {
	return taggableEvents[event]
}

// RadarrWebhook is the subset of the Radarr webhook payload tagarr reads.
type RadarrWebhook struct {
	EventType    string `json:"eventType"`
	InstanceName string `json:"instanceName"`
	Movie        *struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
		Year  int    `json:"year"`
	} `json:"movie"`
}

type webhookResponse struct {
	Status  string `json:"status"`
	Event   string `json:"event"`
	MovieID int64  `json:"movieId,omitempty"`
}

// radarrWebhook accepts Radarr's Connect webhook and tags the referenced
// movie in the background. Duplicate events for a movie already being
// processed share that run.
// POST /api/v1/webhook/radarr
func (s *Server) radarrWebhook(c echo.Context) error {
	var payload RadarrWebhook
	if err := c.Bind(&payload); err != nil {
		metrics.IncWebhookEvent("invalid", "rejected")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}
	if payload.EventType == "" {
		metrics.IncWebhookEvent("invalid", "rejected")
		return echo.NewHTTPError(http.StatusBadRequest, "eventType is required")
	}

	event := payload.EventType
	if event == EventTest {
		metrics.IncWebhookEvent(event, "test")
		s.logger.Info().Str("instance", payload.InstanceName).Msg("Received Radarr test webhook")
		return c.JSON(http.StatusOK, webhookResponse{Status: "ok", Event: event})
	}

	if !IsTaggableEvent(event) {
		metrics.IncWebhookEvent(event, "ignored")
		return c.JSON(http.StatusOK, webhookResponse{Status: "ignored", Event: event})
	}

	if payload.Movie == nil || payload.Movie.ID <= 0 {
		metrics.IncWebhookEvent(event, "rejected")
		return echo.NewHTTPError(http.StatusBadRequest, "movie.id is required")
	}

	movieID := payload.Movie.ID
	metrics.IncWebhookEvent(event, "queued")
	s.logger.Info().
		Str("event", event).
		Int64("movieId", movieID).
		Str("title", payload.Movie.Title).
		Msg("Queued movie from webhook")

	s.background(func(ctx context.Context) {
		s.tagItem(ctx, movieID)
	})

	return c.JSON(http.StatusAccepted, webhookResponse{Status: "queued", Event: event, MovieID: movieID})
}

func (s *Server) tagItem(ctx context.Context, movieID int64) {
	key := strconv.FormatInt(movieID, 10)
	ev := runEvent{Mode: tagging.ModeItem, Trigger: "webhook", MovieID: movieID}
	_, err, shared := s.items.Do(key, func() (any, error) {
		s.publishStarted(ev)
		summary, err := s.runner.RunItem(ctx, movieID)
		s.publishCompleted(ev, summary, err)
		return summary, err
	})
	logger := s.logger.With().Int64("movieId", movieID).Bool("coalesced", shared).Logger()

	switch {
	case errors.Is(err, registry.ErrNotFound):
		logger.Warn().Msg("Movie from webhook not found in registry")
	case err != nil:
		logger.Error().Err(err).Msg("Webhook tagging failed")
	default:
		logger.Debug().Msg("Webhook tagging finished")
	}
}

// requireToken checks the shared token when one is configured. The token
// may be passed as ?token= or the X-Tagarr-Token header.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		want := s.cfg.WebhookToken
		if want == "" {
			return next(c)
		}
		got := c.QueryParam("token")
		if got == "" {
			got = c.Request().Header.Get("X-Tagarr-Token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			metrics.IncWebhookEvent("unauthorized", "rejected")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		return next(c)
	}
}

// redactToken hides the token query parameter in logged URIs.
func redactToken(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	if q.Get("token") == "" {
		return uri
	}
	q.Set("token", "redacted")
	u.RawQuery = q.Encode()
	return u.String()
}
