package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

// Store reads and updates the rule file on disk.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store for the rule file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the rule file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the rule file.
func (s *Store) Load() (*Set, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: rule file %s not found", ErrInvalid, s.path)
		}
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return Parse(data)
}

// AppendDiscovered appends entries as inactive rules and rewrites the file
// atomically. Entries whose token or category already exists, in the file or
// earlier in entries, are skipped, as is any entry the rule set would reject;
// one bad entry never drops the others. It returns the rules actually added.
func (s *Store) AppendDiscovered(entries []Rule) ([]Rule, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Load()
	if err != nil {
		return nil, err
	}

	all := current.All()
	next := current
	var added []Rule
	for _, e := range entries {
		if current.HasToken(e.Token) || current.HasCategory(e.Category) ||
			containsToken(added, e.Token) || containsCategory(added, e.Category) {
			continue
		}
		inactive := false
		e.Active = &inactive

		candidate := make([]Rule, 0, len(all)+1)
		candidate = append(candidate, all...)
		candidate = append(candidate, e)
		set, err := NewSet(candidate)
		if err != nil {
			continue
		}
		all, next = candidate, set
		added = append(added, e)
	}
	if len(added) == 0 {
		return nil, nil
	}

	data, err := next.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule file: %w", err)
	}

	perm := os.FileMode(0o644)
	if info, statErr := os.Stat(s.path); statErr == nil {
		perm = info.Mode().Perm()
	}
	if err := renameio.WriteFile(s.path, data, perm); err != nil {
		return nil, fmt.Errorf("failed to write rule file: %w", err)
	}

	return added, nil
}

func containsCategory(rules []Rule, category string) bool {
	for _, r := range rules {
		if strings.EqualFold(r.Category, category) {
			return true
		}
	}
	return false
}

func containsToken(rules []Rule, token string) bool {
	for _, r := range rules {
		if strings.EqualFold(r.Token, token) {
			return true
		}
	}
	return false
}
