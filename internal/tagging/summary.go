package tagging

import (
	"sort"
	"time"

	"github.com/tagarr/tagarr/internal/classify"
	"github.com/tagarr/tagarr/internal/discovery"
	"github.com/tagarr/tagarr/internal/reconcile"
	"github.com/tagarr/tagarr/internal/registry"
	"github.com/tagarr/tagarr/internal/rules"
	"github.com/tagarr/tagarr/internal/sweep"
)

// Mode distinguishes the two run paths.
type Mode string

const (
	ModeBatch Mode = "batch"
	ModeItem  Mode = "item"
)

// ItemReport is the classification and reconciliation of one item.
type ItemReport struct {
	Item          registry.Item
	HDR           *classify.HDRResult
	ReleaseGroups *classify.ReleaseGroupResult
	Desired       classify.Desired
	Reconcile     reconcile.ItemResult
	// Stale is set when the re-fetch failed and the listing snapshot was used.
	Stale bool
}

// Summary is the merged result of a run.
type Summary struct {
	RunID     string
	Mode      Mode
	DryRun    bool
	StartedAt time.Time
	Duration  time.Duration
	// Interrupted is set when the context was cancelled between items.
	Interrupted bool

	Items            int
	Skipped          int
	AnalyzerFailures int
	Reports          []ItemReport

	Apply               reconcile.ApplyResult
	NotFoundInSecondary []reconcile.Outcome
	Orphaned            []reconcile.Outcome

	Candidates []discovery.Candidate
	// RulesAdded lists the discovered rules written to the rule file.
	RulesAdded []rules.Rule

	Sweep *sweep.Result

	// CategoryCounts counts items that desire each category present.
	CategoryCounts map[string]int
	// Failures counts failed registry writes and rule file updates.
	Failures int
}

func newSummary(runID string, mode Mode, dryRun bool, started time.Time) *Summary {
	return &Summary{
		RunID:          runID,
		Mode:           mode,
		DryRun:         dryRun,
		StartedAt:      started,
		CategoryCounts: make(map[string]int),
	}
}

func (s *Summary) addReport(r ItemReport) {
	s.Items++
	if r.HDR != nil {
		if r.HDR.Skipped {
			s.Skipped++
		}
		if r.HDR.AnalyzerErr != nil {
			s.AnalyzerFailures++
		}
	}
	for _, c := range r.Desired.Present() {
		s.CategoryCounts[c]++
	}
	for _, o := range r.Reconcile.Outcomes {
		if o.Kind == reconcile.NotFoundInSecondary {
			s.NotFoundInSecondary = append(s.NotFoundInSecondary, o)
		}
	}
	s.Reports = append(s.Reports, r)
}

// Added returns the number of item label additions applied (or planned).
func (s *Summary) Added() int {
	return s.Apply.Count(registry.OpAdd)
}

// Removed returns the number of item label removals applied (or planned).
func (s *Summary) Removed() int {
	return s.Apply.Count(registry.OpRemove)
}

// LabelsDeleted returns the number of labels removed by the sweep.
func (s *Summary) LabelsDeleted() int {
	if s.Sweep == nil {
		return 0
	}
	return s.Sweep.Count()
}

// Categories returns the category names in CategoryCounts, sorted.
func (s *Summary) Categories() []string {
	out := make([]string, 0, len(s.CategoryCounts))
	for c := range s.CategoryCounts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Result returns the metrics label for the run.
func (s *Summary) Result() string {
	switch {
	case s.DryRun:
		return "dry_run"
	case s.Failures > 0 || s.Interrupted:
		return "failure"
	default:
		return "success"
	}
}

// Status holds the outcome of the last batch run.
type Status struct {
	Running   bool      `json:"running"`
	RunID     string    `json:"runId,omitempty"`
	LastRun   time.Time `json:"lastRun,omitempty"`
	Items     int       `json:"items"`
	Added     int       `json:"added"`
	Removed   int       `json:"removed"`
	Failures  int       `json:"failures"`
	ElapsedMs int64     `json:"elapsed"`
	Error     string    `json:"error,omitempty"`
}
