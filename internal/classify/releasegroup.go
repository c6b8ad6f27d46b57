package classify

import (
	"github.com/tagarr/tagarr/internal/match"
	"github.com/tagarr/tagarr/internal/rules"
)

// Reasons recorded for release-group decisions.
const (
	ReasonMatched           = "matched"
	ReasonMatchedFiltered   = "matched, filters passed"
	ReasonWrongReleaseGroup = "wrong release group"
	ReasonFailedQuality     = "failed quality"
	ReasonFailedAudio       = "failed audio"
	ReasonFailedBoth        = "failed quality & audio"
)

// RuleDecision is the outcome of one rule for one item.
type RuleDecision struct {
	Category string
	Display  string
	Present  bool
	Reason   string
	Location match.Location
	Quality  string
	Audio    string
}

// ReleaseGroupResult holds every rule decision for an item.
type ReleaseGroupResult struct {
	Desired   Desired
	Decisions []RuleDecision
}

// Matched returns the decisions that desire their category present.
func (r ReleaseGroupResult) Matched() []RuleDecision {
	var out []RuleDecision
	for _, d := range r.Decisions {
		if d.Present {
			out = append(out, d)
		}
	}
	return out
}

// ReleaseGroupClassifier evaluates the active rules against item fields.
type ReleaseGroupClassifier struct {
	rules   []rules.Rule
	filters Filters
}

// NewReleaseGroupClassifier creates a classifier over the active rules.
func NewReleaseGroupClassifier(active []rules.Rule, filters Filters) *ReleaseGroupClassifier {
	return &ReleaseGroupClassifier{rules: active, filters: filters}
}

// Filters returns the predicates used for filtered rules.
func (c *ReleaseGroupClassifier) Filters() Filters {
	return c.filters
}

// Rules returns the rules being evaluated.
func (c *ReleaseGroupClassifier) Rules() []rules.Rule {
	return c.rules
}

// Classify evaluates every rule independently. An item may desire any
// number of categories.
func (c *ReleaseGroupClassifier) Classify(fields match.Fields) ReleaseGroupResult {
	res := ReleaseGroupResult{Desired: make(Desired, len(c.rules))}

	var filtered *FilterResult
	for _, r := range c.rules {
		d := RuleDecision{Category: r.Category, Display: r.DisplayName()}

		loc, matched := fields.FirstMatch(r.Token)
		d.Location = loc

		switch {
		case !matched:
			d.Reason = ReasonWrongReleaseGroup
		case r.Mode == rules.ModeSimple:
			d.Present = true
			d.Reason = ReasonMatched
		default:
			if filtered == nil {
				fr := c.filters.Evaluate(fields.Combined())
				filtered = &fr
			}
			d.Quality = filtered.Quality
			d.Audio = filtered.Audio
			if filtered.Passed() {
				d.Present = true
				d.Reason = ReasonMatchedFiltered
			} else {
				d.Reason = filtered.Reason()
			}
		}

		res.Desired.Set(r.Category, d.Present)
		res.Decisions = append(res.Decisions, d)
	}

	return res
}
