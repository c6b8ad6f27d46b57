// Package sweep deletes managed labels that no item holds anymore.
package sweep

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/registry"
)

// Deletion is one label removed (or, under dry-run, that would be removed).
type Deletion struct {
	Registry string
	Category string
	LabelID  int64
	Err      error
}

// Result summarizes a sweep.
type Result struct {
	DryRun    bool
	Deleted   []Deletion
	Failed    int
	Unchecked []string // registries that could not be listed
}

// Sweeper removes zero-member labels for the managed categories.
type Sweeper struct {
	dryRun bool
	logger *zerolog.Logger
}

// New creates a sweeper.
func New(dryRun bool, logger *zerolog.Logger) *Sweeper {
	subLogger := logger.With().Str("component", "sweep").Logger()
	return &Sweeper{dryRun: dryRun, logger: &subLogger}
}

// Sweep checks every managed category in every registry against a fresh
// item listing and deletes labels with no members. Whether the run ever
// desired a category does not matter.
func (s *Sweeper) Sweep(ctx context.Context, registries []registry.Registry, managed []string) Result {
	res := Result{DryRun: s.dryRun}

	categories := append([]string(nil), managed...)
	sort.Strings(categories)

	for _, reg := range registries {
		if err := s.sweepRegistry(ctx, reg, categories, &res); err != nil {
			s.logger.Warn().Err(err).Str("registry", reg.Name()).Msg("Sweep skipped")
			res.Unchecked = append(res.Unchecked, reg.Name())
		}
	}
	return res
}

func (s *Sweeper) sweepRegistry(ctx context.Context, reg registry.Registry, categories []string, res *Result) error {
	labels, err := reg.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list labels: %w", err)
	}
	items, err := reg.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	members := make(map[int64]int)
	for _, it := range items {
		for _, id := range it.Labels {
			members[id]++
		}
	}

	idx := registry.NewLabelIndex(labels)
	for _, category := range categories {
		id, ok := idx.ID(category)
		if !ok || members[id] > 0 {
			continue
		}

		d := Deletion{Registry: reg.Name(), Category: category, LabelID: id}
		if s.dryRun {
			s.logger.Info().Str("registry", reg.Name()).Str("category", category).Int64("labelId", id).
				Msg("[dry-run] would delete empty label")
			res.Deleted = append(res.Deleted, d)
			continue
		}

		if err := reg.DeleteLabel(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("registry", reg.Name()).Str("category", category).
				Msg("Failed to delete empty label")
			d.Err = err
			res.Failed++
		} else {
			s.logger.Info().Str("registry", reg.Name()).Str("category", category).Int64("labelId", id).
				Msg("Deleted empty label")
		}
		res.Deleted = append(res.Deleted, d)
	}
	return nil
}

// Count returns the number of successful (or, under dry-run, planned) deletions.
func (r Result) Count() int {
	return len(r.Deleted) - r.Failed
}
