package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/tagarr/tagarr/internal/config"
	"github.com/tagarr/tagarr/internal/websocket"
)

func TestEventStream_RequiresToken(t *testing.T) {
	hub := websocket.NewHub()
	s := newTestServer(t, config.ServerConfig{WebhookToken: "secret"}, &stubRunner{}, Options{Hub: hub})

	rec := do(s, http.MethodGet, "/api/v1/ws", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestEventStream_WebhookRunEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := websocket.NewHub()
	go hub.Run(ctx)

	s := newTestServer(t, config.ServerConfig{}, &stubRunner{}, Options{Hub: hub})
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/api/v1/webhook/radarr", "application/json",
		strings.NewReader(`{"eventType":"Download","movie":{"id":7,"title":"Dune"}}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	var got []string
	var completed runEvent
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(got) < 2 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (got %v)", err, got)
		}
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, msg.Type)
		if msg.Type == websocket.TypeRunCompleted {
			if err := json.Unmarshal(msg.Payload, &completed); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
		}
	}

	if got[0] != websocket.TypeRunStarted || got[1] != websocket.TypeRunCompleted {
		t.Errorf("events = %v, want [run:started run:completed]", got)
	}
	if completed.MovieID != 7 || completed.Trigger != "webhook" || completed.Result != "success" {
		t.Errorf("completed = %+v", completed)
	}
}
