// Package reconcile converges registry labels to the desired classification:
// it diffs desired against current state, batches the resulting edits per
// registry and category, mirrors them to a secondary registry and removes
// labels the primary run no longer justifies.
package reconcile

import (
	"sort"
	"strings"

	"github.com/tagarr/tagarr/internal/classify"
)

// Action is the outcome of diffing one category on one item.
type Action string

const (
	ActionAdd         Action = "add"
	ActionRemove      Action = "remove"
	ActionKeepPresent Action = "keep-present"
	ActionKeepAbsent  Action = "keep-absent"
)

// Mutates reports whether the action requires a registry call.
func (a Action) Mutates() bool {
	return a == ActionAdd || a == ActionRemove
}

// Step is the action for one category.
type Step struct {
	Category string
	Action   Action
}

// Plan holds one step per managed category, sorted by category.
type Plan []Step

// Diff compares the desired state with the label names currently on an item.
// Categories absent from desired are not managed and produce no step.
func Diff(desired classify.Desired, current []string) Plan {
	held := make(map[string]bool, len(current))
	for _, name := range current {
		held[strings.ToLower(name)] = true
	}

	plan := make(Plan, 0, len(desired))
	for category, want := range desired {
		has := held[strings.ToLower(category)]
		var a Action
		switch {
		case want && !has:
			a = ActionAdd
		case want && has:
			a = ActionKeepPresent
		case !want && has:
			a = ActionRemove
		default:
			a = ActionKeepAbsent
		}
		plan = append(plan, Step{Category: category, Action: a})
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Category < plan[j].Category })
	return plan
}

// Mutations returns the add and remove steps.
func (p Plan) Mutations() []Step {
	var out []Step
	for _, s := range p {
		if s.Action.Mutates() {
			out = append(out, s)
		}
	}
	return out
}

// Categories returns the categories with the given action.
func (p Plan) Categories(a Action) []string {
	var out []string
	for _, s := range p {
		if s.Action == a {
			out = append(out, s.Category)
		}
	}
	return out
}

// Count returns the number of steps with the given action.
func (p Plan) Count(a Action) int {
	n := 0
	for _, s := range p {
		if s.Action == a {
			n++
		}
	}
	return n
}
