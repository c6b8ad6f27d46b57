package startup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/health"
	"github.com/tagarr/tagarr/internal/registry"
)

// ValidateRegistries checks connectivity and credentials of every registry,
// retrying while they are unreachable. Results are recorded in tracker when
// it is non-nil.
func ValidateRegistries(
	ctx context.Context,
	registries []registry.Registry,
	tracker *health.Service,
	cfg RetryConfig,
	logger *zerolog.Logger,
) error {
	subLogger := logger.With().Str("component", "startup").Logger()

	for _, reg := range registries {
		name := reg.Name()
		if tracker != nil {
			tracker.Register(health.CategoryRegistries, name, name)
		}

		err := WithRetry(ctx, "validate "+name, cfg, reg.Validate, &subLogger)
		if err != nil {
			if tracker != nil {
				tracker.SetError(health.CategoryRegistries, name, err.Error())
			}
			return fmt.Errorf("validate %s: %w", name, err)
		}

		if tracker != nil {
			tracker.ClearStatus(health.CategoryRegistries, name)
		}
		subLogger.Info().Str("registry", name).Msg("Registry reachable")
	}
	return nil
}
