// Package tagging runs classification and reconciliation over a library,
// either as a batch over every item or for a single item.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/classify"
	"github.com/tagarr/tagarr/internal/discovery"
	"github.com/tagarr/tagarr/internal/match"
	"github.com/tagarr/tagarr/internal/metrics"
	"github.com/tagarr/tagarr/internal/notification"
	"github.com/tagarr/tagarr/internal/reconcile"
	"github.com/tagarr/tagarr/internal/registry"
	"github.com/tagarr/tagarr/internal/rules"
	"github.com/tagarr/tagarr/internal/sweep"
)

// ErrRunInProgress is returned by TryRunBatch when a batch is already running.
var ErrRunInProgress = errors.New("a batch run is already in progress")

// Settings controls which stages run.
type Settings struct {
	DryRun               bool
	Debug                bool
	HDREnabled           bool
	Groups               classify.GroupFlags
	ReleaseGroupsEnabled bool
	DiscoveryEnabled     bool
	CleanupEnabled       bool
	BatchSize            int
	Filters              classify.Filters
}

// Service orchestrates tagging runs.
type Service struct {
	primary   registry.Registry
	secondary registry.Registry
	extractor classify.ProfileExtractor
	rules     *rules.Store
	notifier  *notification.Service
	settings  Settings
	logger    *zerolog.Logger
	now       func() time.Time
	locker    Locker

	// runMu serializes batch and single-item runs in one process.
	runMu   sync.Mutex
	running atomic.Bool
	mu      sync.RWMutex
	status  Status
}

// Locker guards runs against other processes. Acquire returns a release
// function; with wait it blocks until the lock is free or ctx ends.
type Locker interface {
	Acquire(ctx context.Context, wait bool) (func(), error)
}

// NewService creates a tagging service. secondary, extractor and notifier
// may be nil.
func NewService(
	primary, secondary registry.Registry,
	extractor classify.ProfileExtractor,
	ruleStore *rules.Store,
	notifier *notification.Service,
	settings Settings,
	logger *zerolog.Logger,
) *Service {
	subLogger := logger.With().Str("component", "tagging").Logger()
	return &Service{
		primary:   primary,
		secondary: secondary,
		extractor: extractor,
		rules:     ruleStore,
		notifier:  notifier,
		settings:  settings,
		logger:    &subLogger,
		now:       time.Now,
	}
}

// SetLocker sets the cross-process run lock.
func (s *Service) SetLocker(l Locker) {
	s.locker = l
}

func (s *Service) acquire(ctx context.Context, wait bool) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, wait)
}

// IsRunning returns whether a batch run is in progress.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// LastStatus returns the status of the last batch run.
func (s *Service) LastStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Running = s.running.Load()
	return st
}

// TryRunBatch starts a batch run unless one is already in progress.
func (s *Service) TryRunBatch(ctx context.Context) (*Summary, error) {
	if s.running.Load() {
		return nil, ErrRunInProgress
	}
	return s.RunBatch(ctx)
}

// LoadRules reads the rule file and checks that no rule category collides
// with a taxonomy label.
func (s *Service) LoadRules() (*rules.Set, error) {
	set, err := s.rules.Load()
	if err != nil {
		return nil, err
	}
	for _, r := range set.All() {
		if classify.IsTaxonomyLabel(r.Category) {
			return nil, fmt.Errorf("%w: category %q is reserved for HDR/DV labels", rules.ErrInvalid, r.Category)
		}
	}
	return set, nil
}

// run holds the per-run collaborators.
type run struct {
	id        string
	logger    zerolog.Logger
	set       *rules.Set
	engine    *reconcile.Engine
	hdr       *classify.HDRClassifier
	groups    *classify.ReleaseGroupClassifier
	discovery *discovery.Engine
	summary   *Summary
}

func (s *Service) newRun(ctx context.Context, mode Mode) (*run, error) {
	id := uuid.New().String()
	r := &run{
		id:      id,
		logger:  s.logger.With().Str("run_id", id).Str("mode", string(mode)).Logger(),
		summary: newSummary(id, mode, s.settings.DryRun, s.now()),
	}

	set, err := s.LoadRules()
	if err != nil {
		return nil, err
	}
	r.set = set

	r.engine = reconcile.NewEngine(s.primary, s.secondary, reconcile.Options{
		DryRun:    s.settings.DryRun,
		BatchSize: s.settings.BatchSize,
	}, &r.logger)
	if err := r.engine.Prepare(ctx); err != nil {
		return nil, err
	}

	r.hdr = classify.NewHDRClassifier(s.extractor, s.settings.Groups, &r.logger)
	r.groups = classify.NewReleaseGroupClassifier(set.Active(), s.settings.Filters)
	r.discovery = discovery.New(set, s.settings.Filters)
	return r, nil
}

// RunBatch classifies and reconciles every primary item, then runs the
// orphan pass, applies the queued edits, persists discovered groups and
// sweeps empty labels.
func (s *Service) RunBatch(ctx context.Context) (*Summary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	start := s.now()
	summary, err := s.lockedBatch(ctx)
	elapsed := s.now().Sub(start)

	st := Status{LastRun: start, ElapsedMs: elapsed.Milliseconds()}
	if err != nil {
		st.Error = err.Error()
		metrics.RecordRun(string(ModeBatch), "failure", elapsed)
	} else {
		st.RunID = summary.RunID
		st.Items = summary.Items
		st.Added = summary.Added()
		st.Removed = summary.Removed()
		st.Failures = summary.Failures
		metrics.RecordRun(string(ModeBatch), summary.Result(), elapsed)
	}
	s.setStatus(st)
	return summary, err
}

func (s *Service) lockedBatch(ctx context.Context) (*Summary, error) {
	release, err := s.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.runBatch(ctx)
}

func (s *Service) runBatch(ctx context.Context) (*Summary, error) {
	r, err := s.newRun(ctx, ModeBatch)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Bool("dryRun", s.settings.DryRun).Int("rules", len(r.set.Active())).Msg("Tagging run starting")

	items, err := s.primary.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items in %s: %w", s.primary.Name(), err)
	}
	r.logger.Info().Int("items", len(items)).Msg("Library listed")

	for _, snapshot := range items {
		if ctx.Err() != nil {
			r.summary.Interrupted = true
			r.logger.Warn().Err(ctx.Err()).Int("processed", r.summary.Items).Msg("Run interrupted, stopping between items")
			break
		}

		item, stale := s.refetch(ctx, &r.logger, snapshot)
		report := s.processItem(ctx, r, item)
		report.Stale = stale
		r.summary.addReport(report)
	}
	metrics.AddItems(r.summary.Items)

	managed := s.managedCategories(r.set)
	if !r.summary.Interrupted {
		r.summary.Orphaned = r.engine.OrphanPass(items, managed)
	}

	s.apply(ctx, r)
	s.persistDiscovered(r)

	if s.settings.CleanupEnabled && !r.summary.Interrupted {
		res := sweep.New(s.settings.DryRun, &r.logger).Sweep(ctx, s.registries(), managed)
		r.summary.Sweep = &res
		r.summary.Failures += res.Failed
		if !res.DryRun {
			for _, d := range res.Deleted {
				if d.Err == nil {
					metrics.IncLabelDeleted(d.Registry)
				}
			}
		}
	}

	r.summary.Duration = s.now().Sub(r.summary.StartedAt)
	for _, o := range r.summary.NotFoundInSecondary {
		metrics.IncOutcome(string(o.Kind))
	}
	for _, o := range r.summary.Orphaned {
		metrics.IncOutcome(string(o.Kind))
	}

	r.logger.Info().
		Int("items", r.summary.Items).
		Int("skipped", r.summary.Skipped).
		Int("added", r.summary.Added()).
		Int("removed", r.summary.Removed()).
		Int("notFoundInSecondary", len(r.summary.NotFoundInSecondary)).
		Int("orphaned", len(r.summary.Orphaned)).
		Int("discovered", len(r.summary.Candidates)).
		Int("failures", r.summary.Failures).
		Dur("duration", r.summary.Duration).
		Msg("Tagging run complete")

	s.notifySummary(ctx, r.summary)
	return r.summary, nil
}

// RunItem classifies and reconciles a single primary item. The orphan pass
// and the sweep are skipped.
func (s *Service) RunItem(ctx context.Context, itemID int64) (*Summary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := s.now()
	summary, err := s.runItem(ctx, itemID)
	result := "failure"
	if err == nil {
		result = summary.Result()
	}
	metrics.RecordRun(string(ModeItem), result, s.now().Sub(start))
	return summary, err
}

func (s *Service) runItem(ctx context.Context, itemID int64) (*Summary, error) {
	release, err := s.acquire(ctx, true)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.newRun(ctx, ModeItem)
	if err != nil {
		return nil, err
	}

	item, err := s.primary.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %d from %s: %w", itemID, s.primary.Name(), err)
	}
	r.logger.Info().Int64("itemId", item.ID).Str("title", item.Title).Msg("Tagging single item")
	s.refetchCounterpart(ctx, r, item)

	report := s.processItem(ctx, r, item)
	r.summary.addReport(report)
	metrics.AddItems(1)

	s.apply(ctx, r)
	s.persistDiscovered(r)
	r.summary.Duration = s.now().Sub(r.summary.StartedAt)

	r.logger.Info().
		Strs("labels", report.Desired.Present()).
		Int("added", r.summary.Added()).
		Int("removed", r.summary.Removed()).
		Msg("Item tagged")

	if s.notifier.Len() > 0 {
		s.notifier.DispatchItemTagged(ctx, notification.ItemTaggedEvent{
			RunID:  r.id,
			DryRun: s.settings.DryRun,
			Item: notification.ItemInfo{
				ID:           item.ID,
				Title:        item.Title,
				Year:         item.Year,
				TMDbID:       item.ExternalID,
				SceneName:    item.SceneName,
				ReleaseGroup: item.ReleaseGroup,
			},
			Labels:   report.Desired.Present(),
			Added:    report.Reconcile.Primary.Categories(reconcile.ActionAdd),
			Removed:  report.Reconcile.Primary.Categories(reconcile.ActionRemove),
			TaggedAt: s.now(),
		})
		s.notifyDiscovered(ctx, r.summary)
	}
	return r.summary, nil
}

// refetch returns fresh item state, falling back to the listing snapshot.
func (s *Service) refetch(ctx context.Context, logger *zerolog.Logger, snapshot registry.Item) (registry.Item, bool) {
	fresh, err := s.primary.GetItem(ctx, snapshot.ID)
	if err != nil {
		logger.Warn().Err(err).Int64("itemId", snapshot.ID).Str("title", snapshot.Title).
			Msg("Failed to re-fetch item, using listing snapshot")
		return snapshot, true
	}
	return fresh, false
}

// refetchCounterpart refreshes the secondary item correlated with item so the
// single-item diff runs against its current labels. On failure the listing
// snapshot is kept.
func (s *Service) refetchCounterpart(ctx context.Context, r *run, item registry.Item) {
	if s.secondary == nil {
		return
	}
	counterpart, ok := r.engine.Counterpart(item.ExternalID)
	if !ok {
		return
	}
	fresh, err := s.secondary.GetItem(ctx, counterpart.ID)
	if err != nil {
		r.logger.Warn().Err(err).Int64("itemId", counterpart.ID).Str("registry", s.secondary.Name()).
			Msg("Failed to re-fetch secondary item, using listing snapshot")
		return
	}
	r.engine.UpdateSecondaryItem(fresh)
}

func fieldsOf(item registry.Item) match.Fields {
	return match.Fields{
		ReleaseGroup: item.ReleaseGroup,
		SceneName:    item.SceneName,
		RelativePath: item.RelativePath,
	}
}

func (s *Service) processItem(ctx context.Context, r *run, item registry.Item) ItemReport {
	report := ItemReport{Item: item, Desired: make(classify.Desired)}

	if s.settings.HDREnabled {
		hr := r.hdr.Classify(ctx, classify.HDRInput{
			Title:            item.Title,
			HasFile:          item.HasFile,
			FilePath:         item.FilePath,
			DynamicRangeType: item.DynamicRangeType,
		})
		report.HDR = &hr
		report.Desired.Merge(hr.Desired)
		if hr.DVIndicator {
			if hr.DVConfirmed {
				metrics.IncAnalyzer("confirmed")
			} else {
				metrics.IncAnalyzer("failed")
			}
		}
	}

	fields := fieldsOf(item)
	if s.settings.ReleaseGroupsEnabled {
		rr := r.groups.Classify(fields)
		report.ReleaseGroups = &rr
		report.Desired.Merge(rr.Desired)
	}

	report.Reconcile = r.engine.Reconcile(item, report.Desired)

	if s.settings.DiscoveryEnabled && item.HasFile {
		outcome := r.discovery.Observe(fields, item.Title)
		if outcome == discovery.OutcomeRegistered {
			r.logger.Info().Str("token", item.ReleaseGroup).Str("title", item.Title).
				Msg("Discovered new release group")
		}
	}

	if s.settings.Debug {
		s.logTrail(&r.logger, report)
	}
	return report
}

func (s *Service) logTrail(logger *zerolog.Logger, report ItemReport) {
	ev := logger.Debug().Int64("itemId", report.Item.ID).Str("title", report.Item.Title)
	if report.HDR != nil {
		ev = ev.Strs("hdrNotes", report.HDR.Notes)
	}
	if report.ReleaseGroups != nil {
		for _, d := range report.ReleaseGroups.Decisions {
			logger.Debug().Int64("itemId", report.Item.ID).Str("rule", d.Display).
				Bool("present", d.Present).Str("reason", d.Reason).Str("location", string(d.Location)).
				Str("quality", d.Quality).Str("audio", d.Audio).Msg("Rule decision")
		}
	}
	ev.Strs("present", report.Desired.Present()).
		Strs("add", report.Reconcile.Primary.Categories(reconcile.ActionAdd)).
		Strs("remove", report.Reconcile.Primary.Categories(reconcile.ActionRemove)).
		Msg("Item classified")
}

func (s *Service) apply(ctx context.Context, r *run) {
	res := r.engine.Apply(ctx)
	r.summary.Apply = res
	r.summary.Failures += res.Failed
	if res.DryRun {
		return
	}
	for _, e := range res.Edits {
		if e.Err != nil {
			metrics.IncLabelEditFailure(e.Key.Registry)
			continue
		}
		metrics.AddLabelEdits(e.Key.Registry, string(e.Key.Op), e.Items)
	}
}

// persistDiscovered appends this run's candidates to the rule file as
// inactive rules. Nothing is written under dry-run.
func (s *Service) persistDiscovered(r *run) {
	r.summary.Candidates = r.discovery.Candidates()
	if len(r.summary.Candidates) == 0 {
		return
	}

	entries := make([]rules.Rule, 0, len(r.summary.Candidates))
	for _, rule := range r.discovery.Rules(s.now()) {
		if classify.IsTaxonomyLabel(rule.Category) {
			r.logger.Warn().Str("token", rule.Token).Msg("Discovered group collides with an HDR/DV label, not recorded")
			continue
		}
		entries = append(entries, rule)
	}

	if s.settings.DryRun {
		for _, e := range entries {
			r.logger.Info().Str("token", e.Token).Str("category", e.Category).
				Int("occurrences", e.Discovered.Occurrences).
				Msg("[dry-run] would record discovered release group")
		}
		return
	}

	added, err := s.rules.AppendDiscovered(entries)
	if err != nil {
		r.logger.Error().Err(err).Str("path", s.rules.Path()).Msg("Failed to record discovered release groups")
		r.summary.Failures++
		return
	}
	r.summary.RulesAdded = added
	metrics.AddDiscovered(len(added))
	if len(added) > 0 {
		r.logger.Info().Int("count", len(added)).Str("path", s.rules.Path()).
			Msg("Recorded discovered release groups as inactive rules")
	}
}

// managedCategories returns the categories the orphan pass and the sweep
// may touch: taxonomy labels when HDR classification is on and active rule
// categories when release-group classification is on.
func (s *Service) managedCategories(set *rules.Set) []string {
	var out []string
	if s.settings.HDREnabled {
		out = append(out, classify.AllLabels()...)
	}
	if s.settings.ReleaseGroupsEnabled {
		out = append(out, set.Categories()...)
	}
	return out
}

func (s *Service) registries() []registry.Registry {
	if s.secondary == nil {
		return []registry.Registry{s.primary}
	}
	return []registry.Registry{s.primary, s.secondary}
}

func (s *Service) notifySummary(ctx context.Context, summary *Summary) {
	if s.notifier.Len() == 0 {
		return
	}
	s.notifier.DispatchRunSummary(ctx, notification.RunSummaryEvent{
		RunID:               summary.RunID,
		Mode:                string(summary.Mode),
		DryRun:              summary.DryRun,
		StartedAt:           summary.StartedAt,
		Duration:            summary.Duration,
		Items:               summary.Items,
		Skipped:             summary.Skipped,
		Added:               summary.Added(),
		Removed:             summary.Removed(),
		LabelsCreated:       len(summary.Apply.Created),
		LabelsDeleted:       summary.LabelsDeleted(),
		NotFoundInSecondary: len(summary.NotFoundInSecondary),
		Orphaned:            len(summary.Orphaned),
		Discovered:          len(summary.Candidates),
		Failures:            summary.Failures,
		CategoryCounts:      summary.CategoryCounts,
	})
	s.notifyDiscovered(ctx, summary)
}

func (s *Service) notifyDiscovered(ctx context.Context, summary *Summary) {
	if len(summary.Candidates) == 0 {
		return
	}
	groups := make([]notification.DiscoveredGroup, len(summary.Candidates))
	for i, c := range summary.Candidates {
		groups[i] = notification.DiscoveredGroup{
			Token:       c.Token,
			Quality:     c.Quality,
			Audio:       c.Audio,
			FirstSeen:   c.FirstSeenTitle,
			Occurrences: c.Occurrences,
		}
	}
	s.notifier.DispatchDiscovered(ctx, notification.DiscoveredEvent{
		RunID:     summary.RunID,
		DryRun:    summary.DryRun,
		RulesFile: s.rules.Path(),
		Groups:    groups,
	})
}

func (s *Service) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}
