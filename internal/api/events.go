package api

import (
	"github.com/tagarr/tagarr/internal/tagging"
	"github.com/tagarr/tagarr/internal/websocket"
)

// runEvent is the payload of run:started and run:completed messages.
type runEvent struct {
	Mode     tagging.Mode `json:"mode"`
	Trigger  string       `json:"trigger"`
	MovieID  int64        `json:"movieId,omitempty"`
	RunID    string       `json:"runId,omitempty"`
	DryRun   bool         `json:"dryRun,omitempty"`
	Items    int          `json:"items"`
	Added    int          `json:"added"`
	Removed  int          `json:"removed"`
	Failures int          `json:"failures"`
	Result   string       `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func completedEvent(base runEvent, summary *tagging.Summary, err error) runEvent {
	if summary != nil {
		base.RunID = summary.RunID
		base.DryRun = summary.DryRun
		base.Items = summary.Items
		base.Added = summary.Added()
		base.Removed = summary.Removed()
		base.Failures = summary.Failures
		base.Result = summary.Result()
	}
	if err != nil {
		base.Error = err.Error()
		base.Result = "error"
	}
	return base
}

func (s *Server) publishStarted(ev runEvent) {
	if s.opts.Hub != nil {
		s.opts.Hub.Broadcast(websocket.TypeRunStarted, ev)
	}
}

func (s *Server) publishCompleted(ev runEvent, summary *tagging.Summary, err error) {
	if s.opts.Hub != nil {
		s.opts.Hub.Broadcast(websocket.TypeRunCompleted, completedEvent(ev, summary, err))
	}
}
