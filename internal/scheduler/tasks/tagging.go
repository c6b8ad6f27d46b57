package tasks

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/config"
	"github.com/tagarr/tagarr/internal/scheduler"
	"github.com/tagarr/tagarr/internal/tagging"
)

const TaggingTaskID = "tagging-batch"

// BatchRunner starts a batch run unless one is already in progress.
type BatchRunner interface {
	TryRunBatch(ctx context.Context) (*tagging.Summary, error)
}

// RegisterTaggingTask registers the scheduled batch run. A tick that finds a
// run in progress (for example one triggered over the API) is skipped.
func RegisterTaggingTask(sched *scheduler.Scheduler, runner BatchRunner, cfg *config.ScheduleConfig, logger *zerolog.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	subLogger := logger.With().Str("task", TaggingTaskID).Logger()

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          TaggingTaskID,
		Name:        "Tagging Run",
		Description: "Classify every movie and reconcile labels on all registries",
		Cron:        cfg.Cron,
		RunOnStart:  cfg.RunOnStart,
		Func: func(ctx context.Context) error {
			_, err := runner.TryRunBatch(ctx)
			if errors.Is(err, tagging.ErrRunInProgress) {
				subLogger.Info().Msg("Run already in progress, skipping scheduled run")
				return nil
			}
			return err
		},
	})
}
