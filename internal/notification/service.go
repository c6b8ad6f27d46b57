package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Backoff configuration
const (
	minBackoffDuration = 5 * time.Minute
	maxEscalationLevel = 5
)

// Service fans events out to every configured notifier. Sending is best
// effort: failures are logged and put the notifier into backoff, they never
// reach the caller.
type Service struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	logger    zerolog.Logger

	mu     sync.Mutex
	status map[string]*Status
	now    func() time.Time
}

// NewService creates a new notification service
func NewService(notifiers []Notifier, notifyOn NotifyOn, logger *zerolog.Logger) *Service {
	return &Service{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		logger:    logger.With().Str("component", "notification").Logger(),
		status:    make(map[string]*Status),
		now:       time.Now,
	}
}

// Len returns the number of configured notifiers
func (s *Service) Len() int {
	if s == nil {
		return 0
	}
	return len(s.notifiers)
}

// DispatchRunSummary sends the end-of-run summary
func (s *Service) DispatchRunSummary(ctx context.Context, event RunSummaryEvent) {
	s.dispatch(ctx, EventRunSummary, func(n Notifier) error {
		return n.OnRunSummary(ctx, event)
	})
}

// DispatchDiscovered sends newly discovered release groups
func (s *Service) DispatchDiscovered(ctx context.Context, event DiscoveredEvent) {
	if len(event.Groups) == 0 {
		return
	}
	s.dispatch(ctx, EventDiscovered, func(n Notifier) error {
		return n.OnDiscovered(ctx, event)
	})
}

// DispatchItemTagged sends the result of a single-item run
func (s *Service) DispatchItemTagged(ctx context.Context, event ItemTaggedEvent) {
	s.dispatch(ctx, EventItemTagged, func(n Notifier) error {
		return n.OnItemTagged(ctx, event)
	})
}

// TestAll sends a test notification through every notifier, ignoring
// subscriptions and backoff.
func (s *Service) TestAll(ctx context.Context) []TestResult {
	results := make([]TestResult, len(s.notifiers))
	var wg sync.WaitGroup
	for i, n := range s.notifiers {
		wg.Add(1)
		go func(i int, n Notifier) {
			defer wg.Done()
			res := TestResult{Name: n.Name(), Type: string(n.Type()), Success: true, Message: "Notification test successful"}
			if err := n.Test(ctx); err != nil {
				res.Success = false
				res.Message = err.Error()
			}
			results[i] = res
		}(i, n)
	}
	wg.Wait()
	return results
}

// Status returns the failure status of the named notifier
func (s *Service) Status(name string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[name]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// dispatch blocks until every subscribed notifier has returned.
func (s *Service) dispatch(ctx context.Context, eventType EventType, send func(Notifier) error) {
	if s == nil || len(s.notifiers) == 0 || !s.notifyOn.Subscribes(eventType) {
		return
	}

	s.logger.Debug().
		Str("event", string(eventType)).
		Int("count", len(s.notifiers)).
		Msg("Dispatching notification event")

	var wg sync.WaitGroup
	for _, n := range s.notifiers {
		if s.isDisabled(n.Name()) {
			s.logger.Debug().Str("name", n.Name()).Str("event", string(eventType)).Msg("Notifier in backoff, skipping")
			continue
		}
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			s.sendNotification(n, eventType, send)
		}(n)
	}
	wg.Wait()
}

func (s *Service) sendNotification(n Notifier, eventType EventType, send func(Notifier) error) {
	if err := send(n); err != nil {
		s.logger.Error().
			Err(err).
			Str("name", n.Name()).
			Str("type", string(n.Type())).
			Str("event", string(eventType)).
			Msg("Notification failed")
		s.recordFailure(n.Name())
		return
	}
	s.logger.Debug().
		Str("name", n.Name()).
		Str("event", string(eventType)).
		Msg("Notification sent successfully")
	s.clearFailure(n.Name())
}

func (s *Service) isDisabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[name]
	return ok && st.DisabledTill.After(s.now())
}

func (s *Service) recordFailure(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st, ok := s.status[name]
	if !ok {
		s.status[name] = &Status{
			InitialFailure:    now,
			MostRecentFailure: now,
			EscalationLevel:   1,
			DisabledTill:      now.Add(minBackoffDuration),
		}
		return
	}

	st.EscalationLevel++
	if st.EscalationLevel > maxEscalationLevel {
		st.EscalationLevel = maxEscalationLevel
	}
	st.MostRecentFailure = now
	st.DisabledTill = now.Add(minBackoffDuration * time.Duration(1<<(st.EscalationLevel-1)))
}

func (s *Service) clearFailure(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.status, name)
}
