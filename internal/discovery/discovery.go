// Package discovery collects release-group tokens that pass the quality and
// audio filters but have no rule yet, for later manual promotion.
package discovery

import (
	"strings"
	"time"

	"github.com/tagarr/tagarr/internal/classify"
	"github.com/tagarr/tagarr/internal/match"
	"github.com/tagarr/tagarr/internal/rules"
)

// Candidate is a qualifying release group seen during a run.
type Candidate struct {
	Token          string `json:"token"`
	Quality        string `json:"quality"`
	Audio          string `json:"audio"`
	FirstSeenTitle string `json:"firstSeenTitle"`
	Occurrences    int    `json:"occurrences"`
}

// Outcome describes what Observe did with a token.
type Outcome string

const (
	OutcomeSkippedEmpty  Outcome = "empty"
	OutcomeKnown         Outcome = "known"
	OutcomeFailedFilters Outcome = "failed filters"
	OutcomeRegistered    Outcome = "registered"
	OutcomeCountedAgain  Outcome = "counted"
)

// Engine accumulates candidates for one run. It is not safe for concurrent
// use; the batch path observes items sequentially.
type Engine struct {
	known   *rules.Set
	filters classify.Filters
	byToken map[string]*Candidate
	order   []string
}

// New creates an engine. known is the full rule set, active and inactive.
func New(known *rules.Set, filters classify.Filters) *Engine {
	return &Engine{
		known:   known,
		filters: filters,
		byToken: make(map[string]*Candidate),
	}
}

// Observe inspects the release-group field of one item.
func (e *Engine) Observe(fields match.Fields, title string) Outcome {
	token := strings.TrimSpace(fields.ReleaseGroup)
	if token == "" {
		return OutcomeSkippedEmpty
	}
	if e.known != nil && e.known.HasToken(token) {
		return OutcomeKnown
	}

	key := strings.ToLower(token)
	if c, ok := e.byToken[key]; ok {
		c.Occurrences++
		return OutcomeCountedAgain
	}

	res := e.filters.Evaluate(fields.Combined())
	if !res.Passed() {
		return OutcomeFailedFilters
	}

	e.byToken[key] = &Candidate{
		Token:          token,
		Quality:        res.Quality,
		Audio:          res.Audio,
		FirstSeenTitle: title,
		Occurrences:    1,
	}
	e.order = append(e.order, key)
	return OutcomeRegistered
}

// Candidates returns the candidates in first-seen order.
func (e *Engine) Candidates() []Candidate {
	out := make([]Candidate, 0, len(e.order))
	for _, key := range e.order {
		out = append(out, *e.byToken[key])
	}
	return out
}

// Len returns the number of distinct candidates.
func (e *Engine) Len() int {
	return len(e.order)
}

// Rules converts the candidates to inactive rules stamped with the
// discovery date. Tokens that yield no usable category name are dropped.
func (e *Engine) Rules(now time.Time) []rules.Rule {
	date := now.Format(time.DateOnly)
	out := make([]rules.Rule, 0, len(e.order))
	for _, c := range e.Candidates() {
		category := rules.CategoryFor(c.Token)
		if category == "" {
			continue
		}
		inactive := false
		out = append(out, rules.Rule{
			Token:    c.Token,
			Category: category,
			Display:  c.Token,
			Mode:     rules.ModeFiltered,
			Active:   &inactive,
			Discovered: &rules.DiscoveryInfo{
				Date:        date,
				Quality:     c.Quality,
				Audio:       c.Audio,
				FirstSeen:   c.FirstSeenTitle,
				Occurrences: c.Occurrences,
			},
		})
	}
	return out
}
