package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/health"
	"github.com/tagarr/tagarr/internal/registry"
	"github.com/tagarr/tagarr/internal/scheduler"
)

const (
	RegistryHealthTaskID = "registry-health"
	registryHealthCron   = "*/15 * * * *"
)

// RegistryHealthTask periodically validates every registry and records the
// result in the health service.
type RegistryHealthTask struct {
	registries []registry.Registry
	health     *health.Service
	logger     *zerolog.Logger
}

// NewRegistryHealthTask creates a new registry health check task.
func NewRegistryHealthTask(registries []registry.Registry, healthSvc *health.Service, logger *zerolog.Logger) *RegistryHealthTask {
	subLogger := logger.With().Str("task", RegistryHealthTaskID).Logger()
	for _, reg := range registries {
		healthSvc.Register(health.CategoryRegistries, reg.Name(), reg.Name())
	}
	return &RegistryHealthTask{
		registries: registries,
		health:     healthSvc,
		logger:     &subLogger,
	}
}

// Run validates each registry. Failures are recorded, not returned.
func (t *RegistryHealthTask) Run(ctx context.Context) error {
	for _, reg := range t.registries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := reg.Name()
		if err := reg.Validate(ctx); err != nil {
			t.logger.Warn().Err(err).Str("registry", name).Msg("Registry health check failed")
			t.health.SetError(health.CategoryRegistries, name, err.Error())
			continue
		}
		t.health.ClearStatus(health.CategoryRegistries, name)
	}
	return nil
}

// RegisterRegistryHealthTask registers the registry health check.
func RegisterRegistryHealthTask(sched *scheduler.Scheduler, task *RegistryHealthTask) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RegistryHealthTaskID,
		Name:        "Registry Health",
		Description: "Check connectivity and credentials of every registry",
		Cron:        registryHealthCron,
		Func:        task.Run,
	})
}
