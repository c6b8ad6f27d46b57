package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/classify"
	"github.com/tagarr/tagarr/internal/registry"
)

// DefaultBatchSize bounds the number of items sent in one edit call.
const DefaultBatchSize = 250

// OutcomeKind classifies informational reconciliation outcomes.
type OutcomeKind string

const (
	// NotFoundInSecondary: the item has no counterpart in the secondary registry.
	NotFoundInSecondary OutcomeKind = "not found in secondary"
	// OrphanedLabel: a secondary label the primary run did not justify was queued for removal.
	OrphanedLabel OutcomeKind = "orphaned label"
)

// Outcome is an informational event recorded during reconciliation.
type Outcome struct {
	Kind       OutcomeKind
	Registry   string
	ItemID     int64
	ExternalID int64
	Title      string
	Category   string
	// Uncorrelated is set on orphaned labels whose item has no primary correlate.
	Uncorrelated bool
}

// ItemResult is the reconciliation of one item.
type ItemResult struct {
	ItemID    int64
	Title     string
	Primary   Plan
	Secondary Plan
	// SecondaryItemID is zero when no counterpart was found.
	SecondaryItemID int64
	Outcomes        []Outcome
}

// Mutations returns the number of queued edits across both registries.
func (r ItemResult) Mutations() int {
	return len(r.Primary.Mutations()) + len(r.Secondary.Mutations())
}

// AppliedEdit is one EditItemLabels call (or a group of chunked calls).
type AppliedEdit struct {
	Key     BatchKey
	LabelID int64
	Items   int
	Calls   int
	Err     error
}

// ApplyResult summarizes Apply.
type ApplyResult struct {
	DryRun  bool
	Edits   []AppliedEdit
	Created []LabelKey
	Failed  int
}

// Calls returns the number of mutating registry calls made, label
// creations included.
func (r ApplyResult) Calls() int {
	n := len(r.Created)
	for _, e := range r.Edits {
		n += e.Calls
	}
	return n
}

// Count returns how many item edits of op were applied (or planned under dry-run).
func (r ApplyResult) Count(op registry.Op) int {
	n := 0
	for _, e := range r.Edits {
		if e.Key.Op == op && e.Err == nil {
			n += e.Items
		}
	}
	return n
}

// Options configures an Engine.
type Options struct {
	DryRun    bool
	BatchSize int
}

type target struct {
	reg    registry.Registry
	labels *registry.LabelIndex
}

// Engine reconciles items against a primary and an optional secondary
// registry. It accumulates edits until Apply.
type Engine struct {
	opts      Options
	logger    *zerolog.Logger
	primary   *target
	secondary *target
	targets   map[string]*target
	batch     *Batch

	secondaryItems  []registry.Item
	secondaryByExt  map[int64]registry.Item
	secondaryListed bool

	// desired state per external id, kept for the orphan pass
	desiredByExt map[int64]classify.Desired
}

// NewEngine creates an engine. secondary may be nil.
func NewEngine(primary, secondary registry.Registry, opts Options, logger *zerolog.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	subLogger := logger.With().Str("component", "reconcile").Logger()
	e := &Engine{
		opts:         opts,
		logger:       &subLogger,
		primary:      &target{reg: primary, labels: registry.NewLabelIndex(nil)},
		targets:      make(map[string]*target),
		batch:        NewBatch(),
		desiredByExt: make(map[int64]classify.Desired),
	}
	e.targets[primary.Name()] = e.primary
	if secondary != nil {
		e.secondary = &target{reg: secondary, labels: registry.NewLabelIndex(nil)}
		e.targets[secondary.Name()] = e.secondary
	}
	return e
}

// Prepare loads the label listings and the secondary item index. A failed
// label listing is returned since ids cannot be resolved without it; a
// failed secondary item listing only disables mirroring for the run.
func (e *Engine) Prepare(ctx context.Context) error {
	for _, t := range e.orderedTargets() {
		labels, err := t.reg.ListLabels(ctx)
		if err != nil {
			return fmt.Errorf("failed to list labels in %s: %w", t.reg.Name(), err)
		}
		t.labels = registry.NewLabelIndex(labels)
	}

	if e.secondary == nil {
		return nil
	}
	items, err := e.secondary.reg.ListItems(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("registry", e.secondary.reg.Name()).
			Msg("Failed to list secondary items, mirroring disabled for this run")
		return nil
	}
	e.SetSecondaryItems(items)
	return nil
}

// SetSecondaryItems replaces the secondary item index.
func (e *Engine) SetSecondaryItems(items []registry.Item) {
	e.secondaryItems = items
	e.secondaryByExt = make(map[int64]registry.Item, len(items))
	for _, it := range items {
		if it.ExternalID == 0 {
			continue
		}
		if _, dup := e.secondaryByExt[it.ExternalID]; dup {
			continue
		}
		e.secondaryByExt[it.ExternalID] = it
	}
	e.secondaryListed = true
}

// HasSecondary reports whether mirroring is active.
func (e *Engine) HasSecondary() bool {
	return e.secondary != nil && e.secondaryListed
}

func (e *Engine) orderedTargets() []*target {
	if e.secondary == nil {
		return []*target{e.primary}
	}
	return []*target{e.primary, e.secondary}
}

func (e *Engine) currentNames(t *target, item registry.Item) []string {
	return t.labels.Names(item.Labels)
}

func (e *Engine) queue(t *target, itemID int64, plan Plan) {
	for _, s := range plan.Mutations() {
		op := registry.OpAdd
		if s.Action == ActionRemove {
			op = registry.OpRemove
		}
		key := BatchKey{LabelKey: LabelKey{Registry: t.reg.Name(), Category: s.Category}, Op: op}
		e.batch.Queue(key, itemID)
	}
}

// Reconcile diffs one primary item, queues its edits and mirrors them to the
// secondary counterpart.
func (e *Engine) Reconcile(item registry.Item, desired classify.Desired) ItemResult {
	res := ItemResult{ItemID: item.ID, Title: item.Title}

	res.Primary = Diff(desired, e.currentNames(e.primary, item))
	e.queue(e.primary, item.ID, res.Primary)

	if item.ExternalID != 0 {
		if prev, ok := e.desiredByExt[item.ExternalID]; ok {
			prev.Merge(desired)
		} else {
			d := make(classify.Desired, len(desired))
			d.Merge(desired)
			e.desiredByExt[item.ExternalID] = d
		}
	}

	if !e.HasSecondary() {
		return res
	}

	counterpart, ok := e.secondaryByExt[item.ExternalID]
	if item.ExternalID == 0 || !ok {
		res.Outcomes = append(res.Outcomes, Outcome{
			Kind:       NotFoundInSecondary,
			Registry:   e.secondary.reg.Name(),
			ItemID:     item.ID,
			ExternalID: item.ExternalID,
			Title:      item.Title,
		})
		return res
	}

	res.SecondaryItemID = counterpart.ID
	res.Secondary = Diff(desired, e.currentNames(e.secondary, counterpart))
	e.queue(e.secondary, counterpart.ID, res.Secondary)
	return res
}

// Counterpart returns the secondary item correlated with externalID.
func (e *Engine) Counterpart(externalID int64) (registry.Item, bool) {
	if !e.HasSecondary() || externalID == 0 {
		return registry.Item{}, false
	}
	item, ok := e.secondaryByExt[externalID]
	return item, ok
}

// UpdateSecondaryItem replaces the indexed copy of a secondary item with
// fresh state so the next Reconcile diffs against it.
func (e *Engine) UpdateSecondaryItem(item registry.Item) {
	if e.secondaryByExt == nil || item.ExternalID == 0 {
		return
	}
	e.secondaryByExt[item.ExternalID] = item
	for i := range e.secondaryItems {
		if e.secondaryItems[i].ID == item.ID {
			e.secondaryItems[i] = item
		}
	}
}

// OrphanPass queues removal of every managed category on a secondary item
// that the correlating primary item desires absent, and of every managed
// category on secondary items with no primary correlate at all. primaryItems
// is the full primary listing used to decide correlation. A managed category
// the correlating primary item never computed counts as desired absent, so a
// file-less primary item strips stale HDR labels from its counterpart.
func (e *Engine) OrphanPass(primaryItems []registry.Item, managed []string) []Outcome {
	if !e.HasSecondary() {
		return nil
	}

	primaryExt := make(map[int64]bool, len(primaryItems))
	for _, it := range primaryItems {
		if it.ExternalID != 0 {
			primaryExt[it.ExternalID] = true
		}
	}

	managedSet := make(map[string]string, len(managed))
	for _, c := range managed {
		managedSet[strings.ToLower(c)] = c
	}

	name := e.secondary.reg.Name()
	var outcomes []Outcome
	for _, item := range e.secondaryItems {
		held := e.currentNames(e.secondary, item)
		sort.Strings(held)

		correlated := item.ExternalID != 0 && primaryExt[item.ExternalID]
		desired := e.desiredByExt[item.ExternalID]

		for _, labelName := range held {
			category, ok := managedSet[strings.ToLower(labelName)]
			if !ok {
				continue
			}
			if correlated && desired[category] {
				continue
			}
			key := BatchKey{LabelKey: LabelKey{Registry: name, Category: category}, Op: registry.OpRemove}
			if !e.batch.Queue(key, item.ID) {
				continue
			}
			outcomes = append(outcomes, Outcome{
				Kind:         OrphanedLabel,
				Registry:     name,
				ItemID:       item.ID,
				ExternalID:   item.ExternalID,
				Title:        item.Title,
				Category:     category,
				Uncorrelated: !correlated,
			})
			ev := e.logger.Info()
			if !correlated {
				ev = e.logger.Warn()
			}
			ev.Str("registry", name).Int64("itemId", item.ID).Int64("externalId", item.ExternalID).
				Str("title", item.Title).Str("category", category).Bool("correlated", correlated).
				Msg("Orphaned secondary label queued for removal")
		}
	}
	return outcomes
}

// Pending returns the number of queued item edits.
func (e *Engine) Pending() int {
	return e.batch.Pending()
}

// Apply sends every queued edit, one call per (registry, category, op) and
// chunk. Missing labels are created before their first add; under dry-run
// nothing is sent and every edit is only logged. Failed calls are recorded
// and the remaining edits still run.
func (e *Engine) Apply(ctx context.Context) ApplyResult {
	res := ApplyResult{DryRun: e.opts.DryRun}

	for _, key := range e.batch.Keys() {
		if err := ctx.Err(); err != nil {
			e.logger.Warn().Err(err).Msg("Apply interrupted, remaining edits skipped")
			break
		}

		t := e.targets[key.Registry]
		ids := e.batch.Items(key)
		edit := AppliedEdit{Key: key, Items: len(ids)}

		labelID, found := t.labels.ID(key.Category)
		switch {
		case !found && key.Op == registry.OpRemove:
			// nothing to remove from an item if the label does not exist
			continue
		case !found && e.opts.DryRun:
			e.logger.Info().Str("registry", key.Registry).Str("category", key.Category).
				Msg("[dry-run] would create label")
			labelID = -1
		case !found:
			created, err := t.reg.CreateLabel(ctx, key.Category)
			if err != nil {
				e.logger.Warn().Err(err).Str("registry", key.Registry).Str("category", key.Category).
					Msg("Failed to create label, skipping its additions")
				edit.Err = err
				res.Failed++
				res.Edits = append(res.Edits, edit)
				continue
			}
			t.labels.Put(created)
			res.Created = append(res.Created, key.LabelKey)
			labelID = created.ID
			e.logger.Info().Str("registry", key.Registry).Str("category", key.Category).
				Int64("labelId", labelID).Msg("Created label")
		}
		edit.LabelID = labelID

		for _, part := range chunk(ids, e.opts.BatchSize) {
			if e.opts.DryRun {
				e.logger.Info().Str("registry", key.Registry).Str("category", key.Category).
					Str("op", string(key.Op)).Int("items", len(part)).Ints64("itemIds", part).
					Msg("[dry-run] would edit labels")
				continue
			}
			if err := t.reg.EditItemLabels(ctx, part, []int64{labelID}, key.Op); err != nil {
				e.logger.Warn().Err(err).Str("registry", key.Registry).Str("category", key.Category).
					Str("op", string(key.Op)).Int("items", len(part)).Msg("Label edit failed")
				edit.Err = err
				res.Failed++
				continue
			}
			edit.Calls++
			e.logger.Info().Str("registry", key.Registry).Str("category", key.Category).
				Str("op", string(key.Op)).Int("items", len(part)).Msg("Labels updated")
		}
		res.Edits = append(res.Edits, edit)
	}

	e.batch = NewBatch()
	return res
}
