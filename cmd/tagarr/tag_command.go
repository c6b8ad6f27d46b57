package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tagarr/tagarr/internal/api"
	"github.com/tagarr/tagarr/internal/startup"
)

// tagTarget is the movie a tag invocation should process. A zero ID with a
// reason means the invocation is a no-op.
type tagTarget struct {
	movieID int64
	skip    string
}

// resolveTagTarget picks the movie from --movie-id or, when run as a Radarr
// custom script, from the radarr_* environment.
func resolveTagTarget(flagID int64, getenv func(string) string) (tagTarget, error) {
	if flagID > 0 {
		return tagTarget{movieID: flagID}, nil
	}

	event := strings.TrimSpace(getenv("radarr_eventtype"))
	if event == "" {
		return tagTarget{}, fmt.Errorf("--movie-id is required outside a Radarr custom script")
	}
	if event == api.EventTest {
		return tagTarget{skip: "Radarr test event received"}, nil
	}
	if !api.IsTaggableEvent(event) {
		return tagTarget{skip: fmt.Sprintf("Radarr event %q does not affect labels", event)}, nil
	}

	raw := strings.TrimSpace(getenv("radarr_movie_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return tagTarget{}, fmt.Errorf("invalid radarr_movie_id %q", raw)
	}
	return tagTarget{movieID: id}, nil
}

func newTagCommand(ctx *commandContext) *cobra.Command {
	var movieID int64

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Classify and reconcile a single movie",
		Long: "Classify and reconcile a single movie. Without --movie-id the movie is read\n" +
			"from the radarr_eventtype and radarr_movie_id variables Radarr sets for custom scripts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTagTarget(movieID, os.Getenv)
			if err != nil {
				return err
			}
			if target.skip != "" {
				fmt.Fprintln(cmd.OutOrStdout(), target.skip)
				return nil
			}

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

			summary, err := a.tagging.RunItem(runCtx, target.movieID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary))
			return nil
		},
	}

	cmd.Flags().Int64Var(&movieID, "movie-id", 0, "Radarr movie id")
	return cmd
}
