package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/config"
	"github.com/tagarr/tagarr/internal/health"
	"github.com/tagarr/tagarr/internal/logger"
	"github.com/tagarr/tagarr/internal/registry"
	"github.com/tagarr/tagarr/internal/scheduler"
	"github.com/tagarr/tagarr/internal/tagging"
)

type stubRunner struct {
	mu        sync.Mutex
	items     []int64
	batches   int
	running   bool
	itemErr   error
	batchErr  error
	itemDelay time.Duration
	status    tagging.Status
}

func (r *stubRunner) RunItem(ctx context.Context, id int64) (*tagging.Summary, error) {
	if r.itemDelay > 0 {
		time.Sleep(r.itemDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, id)
	return &tagging.Summary{Mode: tagging.ModeItem}, r.itemErr
}

func (r *stubRunner) TryRunBatch(ctx context.Context) (*tagging.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	return &tagging.Summary{RunID: "run-1", Mode: tagging.ModeBatch}, r.batchErr
}

func (r *stubRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *stubRunner) LastStatus() tagging.Status {
	return r.status
}

func (r *stubRunner) itemCalls() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.items...)
}

func newTestServer(t *testing.T, cfg config.ServerConfig, runner Runner, opts Options) *Server {
	t.Helper()
	l := zerolog.Nop()
	s := NewServer(cfg, runner, opts, &l)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_TestEvent(t *testing.T) {
	runner := &stubRunner{}
	s := newTestServer(t, config.ServerConfig{}, runner, Options{})

	rec := do(s, http.MethodPost, "/api/v1/webhook/radarr", `{"eventType":"Test","instanceName":"Radarr"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	s.wg.Wait()
	if len(runner.itemCalls()) != 0 {
		t.Error("test event must not trigger a run")
	}
}

func TestWebhook_DownloadQueuesItem(t *testing.T) {
	runner := &stubRunner{}
	s := newTestServer(t, config.ServerConfig{}, runner, Options{})

	rec := do(s, http.MethodPost, "/api/v1/webhook/radarr", `{"eventType":"Download","movie":{"id":42,"title":"Dune","year":2021}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}

	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MovieID != 42 || resp.Status != "queued" {
		t.Errorf("unexpected response %+v", resp)
	}

	s.wg.Wait()
	if got := runner.itemCalls(); len(got) != 1 || got[0] != 42 {
		t.Errorf("RunItem calls = %v, want [42]", got)
	}
}

func TestWebhook_DuplicatesCoalesced(t *testing.T) {
	runner := &stubRunner{itemDelay: 100 * time.Millisecond}
	s := newTestServer(t, config.ServerConfig{}, runner, Options{})

	for i := 0; i < 3; i++ {
		rec := do(s, http.MethodPost, "/api/v1/webhook/radarr", `{"eventType":"Download","movie":{"id":7}}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	s.wg.Wait()

	if got := runner.itemCalls(); len(got) != 1 {
		t.Errorf("expected duplicate events to share one run, got %d runs", len(got))
	}
}

func TestWebhook_IgnoredAndInvalid(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, &stubRunner{}, Options{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"health event ignored", `{"eventType":"Health"}`, http.StatusOK},
		{"grab ignored", `{"eventType":"Grab","movie":{"id":1}}`, http.StatusOK},
		{"missing movie", `{"eventType":"Download"}`, http.StatusBadRequest},
		{"missing event", `{"movie":{"id":1}}`, http.StatusBadRequest},
		{"malformed", `{"eventType":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/v1/webhook/radarr", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestWebhook_Token(t *testing.T) {
	runner := &stubRunner{}
	s := newTestServer(t, config.ServerConfig{WebhookToken: "s3cret"}, runner, Options{})
	body := `{"eventType":"Test"}`

	if rec := do(s, http.MethodPost, "/api/v1/webhook/radarr", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/api/v1/webhook/radarr?token=wrong", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/api/v1/webhook/radarr?token=s3cret", body); rec.Code != http.StatusOK {
		t.Errorf("query token: status = %d, want 200", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/radarr", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tagarr-Token", "s3cret")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("header token: status = %d, want 200", rec.Code)
	}
}

func TestWebhook_NotFoundIsLoggedNotFatal(t *testing.T) {
	runner := &stubRunner{itemErr: registry.ErrNotFound}
	s := newTestServer(t, config.ServerConfig{}, runner, Options{})

	rec := do(s, http.MethodPost, "/api/v1/webhook/radarr", `{"eventType":"MovieAdded","movie":{"id":9}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	s.wg.Wait()
}

func TestTriggerRun(t *testing.T) {
	runner := &stubRunner{}
	s := newTestServer(t, config.ServerConfig{}, runner, Options{})

	rec := do(s, http.MethodPost, "/api/v1/run", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	s.wg.Wait()
	if runner.batches != 1 {
		t.Errorf("batches = %d, want 1", runner.batches)
	}
}

func TestTriggerRun_Conflict(t *testing.T) {
	runner := &stubRunner{running: true}
	s := newTestServer(t, config.ServerConfig{}, runner, Options{})

	rec := do(s, http.MethodPost, "/api/v1/run", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestTriggerRun_InProgressRace(t *testing.T) {
	runner := &stubRunner{batchErr: tagging.ErrRunInProgress}
	s := newTestServer(t, config.ServerConfig{}, runner, Options{})

	rec := do(s, http.MethodPost, "/api/v1/run", "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	s.wg.Wait()
}

func TestHealth(t *testing.T) {
	l := zerolog.Nop()
	tracker := health.NewService(&l)
	tracker.Register(health.CategoryRegistries, "radarr", "radarr")
	runner := &stubRunner{status: tagging.Status{RunID: "abc", Items: 12, Added: 3}}
	s := newTestServer(t, config.ServerConfig{}, runner, Options{Health: tracker})

	rec := do(s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Run.RunID != "abc" || resp.Run.Items != 12 {
		t.Errorf("unexpected health %+v", resp)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("api responses should not be cached")
	}

	tracker.SetError(health.CategoryRegistries, "radarr", "down")
	rec = do(s, http.MethodGet, "/api/v1/health", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
}

func TestLogs(t *testing.T) {
	recent := logger.NewRecent(10)
	_, _ = recent.Write([]byte(`{"level":"info","message":"one"}`))
	_, _ = recent.Write([]byte(`{"level":"error","message":"two"}`))
	s := newTestServer(t, config.ServerConfig{}, &stubRunner{}, Options{Logs: recent})

	rec := do(s, http.MethodGet, "/api/v1/logs?level=error", "")
	var entries []logger.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "two" {
		t.Errorf("entries = %+v", entries)
	}

	rec = do(s, http.MethodGet, "/api/v1/logs?limit=1", "")
	entries = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "two" {
		t.Errorf("limited entries = %+v", entries)
	}

	rec = do(s, http.MethodGet, "/api/v1/logs?limit=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{}, &stubRunner{}, Options{})
	do(s, http.MethodPost, "/api/v1/webhook/radarr", `{"eventType":"Health"}`)

	rec := do(s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tagarr_webhook_events_total") {
		t.Error("expected webhook counter in metrics output")
	}
}

type stubScheduler struct {
	ran []string
}

func (s *stubScheduler) ListTasks() []scheduler.TaskInfo {
	return []scheduler.TaskInfo{{ID: "tagging-batch", Cron: "0 3 * * *"}}
}

func (s *stubScheduler) GetTask(id string) (*scheduler.TaskInfo, error) {
	if id != "tagging-batch" {
		return nil, scheduler.ErrTaskNotFound
	}
	return &scheduler.TaskInfo{ID: id}, nil
}

func (s *stubScheduler) RunNow(id string) error {
	if id != "tagging-batch" {
		return scheduler.ErrTaskNotFound
	}
	s.ran = append(s.ran, id)
	return nil
}

func TestTasks(t *testing.T) {
	sched := &stubScheduler{}
	s := newTestServer(t, config.ServerConfig{}, &stubRunner{}, Options{Scheduler: sched})

	if rec := do(s, http.MethodGet, "/api/v1/tasks", ""); rec.Code != http.StatusOK {
		t.Errorf("list status = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/v1/tasks/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d, want 404", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/api/v1/tasks/tagging-batch/run", ""); rec.Code != http.StatusAccepted {
		t.Errorf("run status = %d, want 202", rec.Code)
	}
	if len(sched.ran) != 1 {
		t.Errorf("RunNow calls = %v", sched.ran)
	}
}

func TestRedactToken(t *testing.T) {
	got := redactToken("/api/v1/webhook/radarr?token=s3cret")
	if strings.Contains(got, "s3cret") {
		t.Errorf("token not redacted: %s", got)
	}
	if redactToken("/api/v1/health") != "/api/v1/health" {
		t.Error("uri without token should be unchanged")
	}
}

