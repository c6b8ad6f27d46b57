// Package rules loads the release-group category rules and persists
// discovered release groups as inactive entries for manual promotion.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when the rule file cannot be used.
var ErrInvalid = errors.New("invalid rules")

// Mode controls how a rule qualifies an item.
type Mode string

const (
	// ModeSimple qualifies on token match alone.
	ModeSimple Mode = "simple"
	// ModeFiltered additionally requires the quality and audio filters to pass.
	ModeFiltered Mode = "filtered"
)

var labelPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Rule is one configured classification unit.
type Rule struct {
	Token      string         `yaml:"token"`
	Category   string         `yaml:"category"`
	Display    string         `yaml:"display,omitempty"`
	Mode       Mode           `yaml:"mode"`
	Active     *bool          `yaml:"active,omitempty"`
	Discovered *DiscoveryInfo `yaml:"discovered,omitempty"`
}

// DiscoveryInfo records why an inactive rule was added automatically.
type DiscoveryInfo struct {
	Date        string `yaml:"date"`
	Quality     string `yaml:"quality,omitempty"`
	Audio       string `yaml:"audio,omitempty"`
	FirstSeen   string `yaml:"first_seen,omitempty"`
	Occurrences int    `yaml:"occurrences,omitempty"`
}

// IsActive reports whether the rule takes part in classification. Rules
// without an explicit active flag are active.
func (r Rule) IsActive() bool {
	return r.Active == nil || *r.Active
}

// DisplayName returns the human-facing name, falling back to the category.
func (r Rule) DisplayName() string {
	if r.Display != "" {
		return r.Display
	}
	return r.Category
}

// document is the on-disk schema.
type document struct {
	Rules []Rule `yaml:"rules"`
}

// Set is a validated, ordered rule list.
type Set struct {
	rules []Rule
}

// NewSet validates rules and returns them as a Set.
func NewSet(rules []Rule) (*Set, error) {
	seenCategory := make(map[string]bool, len(rules))
	seenToken := make(map[string]bool, len(rules))
	out := make([]Rule, 0, len(rules))

	for i, r := range rules {
		r.Token = strings.TrimSpace(r.Token)
		r.Category = strings.TrimSpace(r.Category)
		if r.Mode == "" {
			r.Mode = ModeSimple
		}

		if r.Token == "" {
			return nil, fmt.Errorf("%w: rule %d has no token", ErrInvalid, i+1)
		}
		if !labelPattern.MatchString(r.Category) {
			return nil, fmt.Errorf("%w: rule %d category %q must be lowercase letters, digits or '-'", ErrInvalid, i+1, r.Category)
		}
		if r.Mode != ModeSimple && r.Mode != ModeFiltered {
			return nil, fmt.Errorf("%w: rule %d has unknown mode %q", ErrInvalid, i+1, r.Mode)
		}
		if seenCategory[r.Category] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalid, r.Category)
		}
		token := strings.ToLower(r.Token)
		if seenToken[token] {
			return nil, fmt.Errorf("%w: duplicate token %q", ErrInvalid, r.Token)
		}
		seenCategory[r.Category] = true
		seenToken[token] = true
		out = append(out, r)
	}

	return &Set{rules: out}, nil
}

// Parse decodes and validates a rule document.
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return NewSet(doc.Rules)
}

// All returns every rule, active and inactive, in file order.
func (s *Set) All() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Active returns the rules that take part in classification.
func (s *Set) Active() []Rule {
	var out []Rule
	for _, r := range s.rules {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

// Inactive returns disabled rules, which include discovered entries.
func (s *Set) Inactive() []Rule {
	var out []Rule
	for _, r := range s.rules {
		if !r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

// Categories returns the categories of all active rules.
func (s *Set) Categories() []string {
	active := s.Active()
	out := make([]string, 0, len(active))
	for _, r := range active {
		out = append(out, r.Category)
	}
	return out
}

// HasToken reports whether any rule, active or not, uses token. The
// comparison is an exact case-insensitive match.
func (s *Set) HasToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	for _, r := range s.rules {
		if strings.EqualFold(r.Token, token) {
			return true
		}
	}
	return false
}

// HasCategory reports whether category is used by any rule.
func (s *Set) HasCategory(category string) bool {
	for _, r := range s.rules {
		if r.Category == category {
			return true
		}
	}
	return false
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Marshal encodes the set in the on-disk schema.
func (s *Set) Marshal() ([]byte, error) {
	return yaml.Marshal(document{Rules: s.rules})
}

// CategoryFor derives a valid category name from a release-group token.
func CategoryFor(token string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(token)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
