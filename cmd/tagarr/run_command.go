package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tagarr/tagarr/internal/startup"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Classify every movie and reconcile labels on all registries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp()
			if err != nil {
				return err
			}
			log := ctx.logger()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := startup.ValidateRegistries(runCtx, a.registries(), nil, startup.DefaultRetryConfig(), &log.Logger); err != nil {
				return err
			}

			summary, err := a.tagging.RunBatch(runCtx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary))

			if summary.Interrupted {
				return context.Canceled
			}
			return nil
		},
	}
}
