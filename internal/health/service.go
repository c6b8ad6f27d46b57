package health

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service tracks the health of external dependencies in memory. State
// resets on restart.
type Service struct {
	items  map[Category]map[string]*Item
	mu     sync.RWMutex
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new health service.
func NewService(logger *zerolog.Logger) *Service {
	s := &Service{
		items:  make(map[Category]map[string]*Item),
		logger: logger.With().Str("component", "health").Logger(),
		now:    time.Now,
	}
	for _, cat := range AllCategories() {
		s.items[cat] = make(map[string]*Item)
	}
	return s
}

// Register adds an item with OK status. Re-registering keeps the current status.
func (s *Service) Register(category Category, id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[category][id]; exists {
		return
	}
	s.items[category][id] = &Item{ID: id, Category: category, Name: name, Status: StatusOK}
}

// SetError sets an item to Error status with a message.
func (s *Service) SetError(category Category, id, message string) {
	s.setStatus(category, id, StatusError, message)
}

// SetWarning sets an item to Warning status with a message.
func (s *Service) SetWarning(category Category, id, message string) {
	s.setStatus(category, id, StatusWarning, message)
}

// ClearStatus resets an item to OK status.
func (s *Service) ClearStatus(category Category, id string) {
	s.setStatus(category, id, StatusOK, "")
}

func (s *Service) setStatus(category Category, id string, status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[category][id]
	if !exists {
		s.logger.Warn().
			Str("category", string(category)).
			Str("id", id).
			Msg("Attempted to update status for unregistered item")
		return
	}

	if item.Status == status && item.Message == message {
		return
	}

	oldStatus := item.Status
	item.Status = status
	item.Message = message
	if status != StatusOK {
		now := s.now()
		item.Timestamp = &now
	} else {
		item.Timestamp = nil
	}

	event := s.logger.Info()
	if status == StatusError {
		event = s.logger.Warn()
	}
	event.
		Str("category", string(category)).
		Str("id", id).
		Str("oldStatus", string(oldStatus)).
		Str("newStatus", string(status)).
		Str("message", message).
		Msg("Health status changed")
}

// Get returns a copy of one item, or nil.
func (s *Service) Get(category Category, id string) *Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[category][id]; exists {
		cp := *item
		return &cp
	}
	return nil
}

// Report returns every item grouped by category, sorted by id.
func (s *Service) Report() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := Report{Healthy: true, Categories: make(map[Category][]Item, len(s.items))}
	for cat, items := range s.items {
		list := make([]Item, 0, len(items))
		for _, item := range items {
			if item.Status != StatusOK {
				r.Healthy = false
			}
			list = append(list, *item)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		r.Categories[cat] = list
	}
	return r
}
