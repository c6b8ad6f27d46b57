package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/notification/types"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type capturedRequest struct {
	Payload Payload
	Headers http.Header
	Method  string
	Calls   int
}

func setupTestServer(t *testing.T, captured *capturedRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Calls++
		captured.Method = r.Method
		captured.Headers = r.Header
		if err := json.NewDecoder(r.Body).Decode(&captured.Payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestNotifier_Type(t *testing.T) {
	n := New("test", &Settings{}, nil, newTestLogger())
	if n.Type() != types.NotifierWebhook {
		t.Errorf("expected type %s, got %s", types.NotifierWebhook, n.Type())
	}
}

func TestNotifier_Name(t *testing.T) {
	n := New("my-webhook", &Settings{}, nil, newTestLogger())
	if n.Name() != "my-webhook" {
		t.Errorf("expected name 'my-webhook', got %s", n.Name())
	}
}

func TestNotifier_DefaultMethod(t *testing.T) {
	settings := &Settings{}
	n := New("test", settings, nil, newTestLogger())
	if n.settings.Method != http.MethodPost {
		t.Errorf("expected default method POST, got %s", n.settings.Method)
	}
	if settings.Method != "" {
		t.Error("caller settings should not be modified")
	}
}

func TestNotifier_Test(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("test", &Settings{URL: server.URL}, http.DefaultClient, newTestLogger())

	if err := n.Test(context.Background()); err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	if captured.Payload.EventType != "test" {
		t.Errorf("expected event type 'test', got %s", captured.Payload.EventType)
	}
	if captured.Payload.InstanceName != "tagarr" {
		t.Errorf("expected instance name 'tagarr', got %s", captured.Payload.InstanceName)
	}
	if captured.Payload.Message != "Test notification from tagarr" {
		t.Errorf("expected test message, got %s", captured.Payload.Message)
	}
}

func TestNotifier_CustomMethod(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("test", &Settings{URL: server.URL, Method: "PUT"}, http.DefaultClient, newTestLogger())

	if err := n.Test(context.Background()); err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if captured.Method != "PUT" {
		t.Errorf("expected method PUT, got %s", captured.Method)
	}
}

func TestNotifier_BasicAuth(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("test", &Settings{
		URL:      server.URL,
		Username: "testuser",
		Password: "testpass",
	}, http.DefaultClient, newTestLogger())

	if err := n.Test(context.Background()); err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("testuser:testpass"))
	if auth := captured.Headers.Get("Authorization"); auth != want {
		t.Errorf("expected %s, got %s", want, auth)
	}
}

func TestNotifier_CustomHeaders(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("test", &Settings{
		URL: server.URL,
		Headers: map[string]string{
			"X-Custom-Header": "custom-value",
			"X-API-Key":       "secret-key",
		},
	}, http.DefaultClient, newTestLogger())

	if err := n.Test(context.Background()); err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	if captured.Headers.Get("X-Custom-Header") != "custom-value" {
		t.Errorf("expected custom header, got %s", captured.Headers.Get("X-Custom-Header"))
	}
	if captured.Headers.Get("X-API-Key") != "secret-key" {
		t.Errorf("expected API key header, got %s", captured.Headers.Get("X-API-Key"))
	}
}

func TestNotifier_OnRunSummary(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("test", &Settings{URL: server.URL}, http.DefaultClient, newTestLogger())

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := types.RunSummaryEvent{
		RunID:          "run-42",
		Mode:           "batch",
		StartedAt:      started,
		Duration:       30 * time.Second,
		Items:          10,
		Added:          4,
		Removed:        1,
		LabelsDeleted:  2,
		CategoryCounts: map[string]int{"dv": 3},
	}
	if err := n.OnRunSummary(context.Background(), event); err != nil {
		t.Fatalf("OnRunSummary() error = %v", err)
	}

	p := captured.Payload
	if p.EventType != "run_summary" {
		t.Errorf("expected event type run_summary, got %s", p.EventType)
	}
	if p.RunID != "run-42" {
		t.Errorf("expected run id, got %s", p.RunID)
	}
	if p.Summary == nil {
		t.Fatal("expected summary")
	}
	if p.Summary.Added != 4 || p.Summary.Removed != 1 || p.Summary.LabelsDeleted != 2 {
		t.Errorf("unexpected summary %+v", p.Summary)
	}
	if p.Summary.DurationSeconds != 30 {
		t.Errorf("expected 30s duration, got %v", p.Summary.DurationSeconds)
	}
	if p.Summary.CategoryCounts["dv"] != 3 {
		t.Errorf("unexpected category counts %v", p.Summary.CategoryCounts)
	}
	if !p.Timestamp.Equal(started.Add(30 * time.Second)) {
		t.Errorf("expected finish timestamp, got %v", p.Timestamp)
	}
}

func TestNotifier_OnDiscovered(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("test", &Settings{URL: server.URL}, http.DefaultClient, newTestLogger())

	if err := n.OnDiscovered(context.Background(), types.DiscoveredEvent{}); err != nil {
		t.Fatalf("OnDiscovered() error = %v", err)
	}
	if captured.Calls != 0 {
		t.Fatalf("expected no request for empty discovery, got %d", captured.Calls)
	}

	event := types.DiscoveredEvent{
		RunID:     "r",
		RulesFile: "/config/rules.yaml",
		Groups: []types.DiscoveredGroup{
			{Token: "NEWGRP", Quality: "MA WEB-DL", Audio: "DDP Atmos", FirstSeen: "Movie.2024.2160p-NEWGRP", Occurrences: 2},
		},
	}
	if err := n.OnDiscovered(context.Background(), event); err != nil {
		t.Fatalf("OnDiscovered() error = %v", err)
	}

	p := captured.Payload
	if p.EventType != "discovered" {
		t.Errorf("expected event type discovered, got %s", p.EventType)
	}
	if p.RulesFile != "/config/rules.yaml" {
		t.Errorf("expected rules file, got %s", p.RulesFile)
	}
	if len(p.Groups) != 1 || p.Groups[0].Token != "NEWGRP" || p.Groups[0].Occurrences != 2 {
		t.Errorf("unexpected groups %+v", p.Groups)
	}
}

func TestNotifier_OnItemTagged(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("test", &Settings{URL: server.URL}, http.DefaultClient, newTestLogger())

	event := types.ItemTaggedEvent{
		RunID:    "r",
		DryRun:   true,
		Item:     types.ItemInfo{ID: 7, Title: "Dune", Year: 2021, TMDbID: 438631, ReleaseGroup: "FLAME"},
		Labels:   []string{"dv", "flame"},
		Added:    []string{"flame"},
		TaggedAt: time.Now(),
	}
	if err := n.OnItemTagged(context.Background(), event); err != nil {
		t.Fatalf("OnItemTagged() error = %v", err)
	}

	p := captured.Payload
	if p.EventType != "item_tagged" {
		t.Errorf("expected event type item_tagged, got %s", p.EventType)
	}
	if !p.DryRun {
		t.Error("expected dry run flag")
	}
	if p.Movie == nil || p.Movie.TMDbID != 438631 || p.Movie.ReleaseGroup != "FLAME" {
		t.Errorf("unexpected movie %+v", p.Movie)
	}
	if len(p.Labels) != 2 || len(p.Added) != 1 || len(p.Removed) != 0 {
		t.Errorf("unexpected labels %v added %v removed %v", p.Labels, p.Added, p.Removed)
	}
}

func TestNotifier_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := New("test", &Settings{URL: server.URL}, http.DefaultClient, newTestLogger())

	if err := n.Test(context.Background()); err == nil {
		t.Error("expected error for HTTP 500")
	}
}

func TestNotifier_ContentType(t *testing.T) {
	var captured capturedRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	n := New("test", &Settings{URL: server.URL}, http.DefaultClient, newTestLogger())

	if err := n.Test(context.Background()); err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if ct := captured.Headers.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}
