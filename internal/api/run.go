package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tagarr/tagarr/internal/tagging"
)

// triggerRun starts a batch run in the background.
// POST /api/v1/run
func (s *Server) triggerRun(c echo.Context) error {
	if s.runner.IsRunning() {
		return echo.NewHTTPError(http.StatusConflict, tagging.ErrRunInProgress.Error())
	}

	s.background(func(ctx context.Context) {
		ev := runEvent{Mode: tagging.ModeBatch, Trigger: "manual"}
		s.publishStarted(ev)
		summary, err := s.runner.TryRunBatch(ctx)
		s.publishCompleted(ev, summary, err)
		switch {
		case errors.Is(err, tagging.ErrRunInProgress):
			s.logger.Info().Msg("Run already in progress, manual trigger ignored")
		case err != nil:
			s.logger.Error().Err(err).Msg("Manual run failed")
		default:
			s.logger.Info().Str("runId", summary.RunID).Msg("Manual run finished")
		}
	})

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}
