package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tagarr/tagarr/internal/api"
	"github.com/tagarr/tagarr/internal/config"
	"github.com/tagarr/tagarr/internal/health"
	"github.com/tagarr/tagarr/internal/logger"
	"github.com/tagarr/tagarr/internal/scheduler"
	"github.com/tagarr/tagarr/internal/scheduler/tasks"
	"github.com/tagarr/tagarr/internal/startup"
	"github.com/tagarr/tagarr/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver and the optional schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp()
			if err != nil {
				return err
			}
			log := ctx.logger()
			cfg := a.cfg

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("version", config.Version).
				Str("address", cfg.Server.Address()).
				Bool("dryRun", cfg.DryRun).
				Msg("starting tagarr")

			tracker := health.NewService(&log.Logger)

			tracker.Register(health.CategoryRules, "rules", cfg.RulesFile)
			if _, err := a.tagging.LoadRules(); err != nil {
				return err
			}

			if a.analyzer != nil {
				tracker.Register(health.CategoryAnalyzer, "dovi_tool", "dovi_tool")
				if !a.analyzer.IsAvailable() {
					tracker.SetWarning(health.CategoryAnalyzer, "dovi_tool", "ffmpeg or dovi_tool not found; Dolby Vision items are tagged no-dv")
				}
			}

			if err := startup.ValidateRegistries(runCtx, a.registries(), tracker, startup.DefaultRetryConfig(), &log.Logger); err != nil {
				return err
			}

			sched, err := scheduler.New(&log.Logger)
			if err != nil {
				return err
			}
			if err := tasks.RegisterTaggingTask(sched, a.tagging, &cfg.Schedule, &log.Logger); err != nil {
				return err
			}
			healthTask := tasks.NewRegistryHealthTask(a.registries(), tracker, &log.Logger)
			if err := tasks.RegisterRegistryHealthTask(sched, healthTask); err != nil {
				return err
			}

			hubCtx, stopHub := context.WithCancel(context.Background())
			defer stopHub()
			hub := websocket.NewHub()
			go hub.Run(hubCtx)
			log.Recent().SetHub(hub)
			defer log.Recent().SetHub(nil)

			server := api.NewServer(cfg.Server, a.tagging, api.Options{
				Health:    tracker,
				Logs:      log.Recent(),
				Scheduler: sched,
				Hub:       hub,
			}, &log.Logger)

			serveErr := make(chan error, 1)
			go func() {
				if err := server.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()
			sched.Start()

			select {
			case <-runCtx.Done():
				log.Info().Msg("received shutdown signal")
			case err := <-serveErr:
				if err != nil {
					log.Error().Err(err).Msg("HTTP server failed")
					stopAll(server, sched, log)
					return err
				}
			}

			stopAll(server, sched, log)
			log.Info().Msg("tagarr stopped")
			return nil
		},
	}
}

func stopAll(server *api.Server, sched *scheduler.Scheduler, log *logger.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down HTTP server")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop scheduler")
	}
}
