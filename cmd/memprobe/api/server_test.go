package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"go.velmi.io/memprobe/cmd/memprobe/storage"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	manager, err := storage.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	session := &storage.Session{
		ID:          uuid.New().String(),
		StartTime:   time.Now().UTC(),
		TimerSource: "test",
		TimerFreqHz: 1_000_000_000,
	}

	store, err := manager.CreateSession(context.Background(), session, "jsonl")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer store.Close()

	results := []*storage.Result{
		{Timestamp: 100, Workload: storage.WorkloadFill, SizeBytes: 1 << 20, Ticks: 10, Bytes: 1 << 20},
		{Timestamp: 200, Workload: storage.WorkloadParse, Trial: 1, SizeBytes: 4096, Ticks: 20, Bytes: 4096},
	}
	if err := store.WriteBatch(results); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	return NewServer(manager, 0), session.ID
}

func get(t *testing.T, handler http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListSessions(t *testing.T) {
	server, sessionID := newTestServer(t)

	rec := get(t, server.Handler(), "/api/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var sessions []*storage.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != sessionID {
		t.Fatalf("sessions = %+v, want the one created session", sessions)
	}
}

func TestGetSession(t *testing.T) {
	server, sessionID := newTestServer(t)

	rec := get(t, server.Handler(), "/api/sessions/"+sessionID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var session storage.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.TimerSource != "test" {
		t.Errorf("timer source = %q, want \"test\"", session.TimerSource)
	}

	if rec := get(t, server.Handler(), "/api/sessions/no-such-id"); rec.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", rec.Code)
	}
}

func TestGetResults(t *testing.T) {
	server, sessionID := newTestServer(t)

	rec := get(t, server.Handler(), "/api/sessions/"+sessionID+"/results")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var results []*storage.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	// Filtered by workload
	rec = get(t, server.Handler(), "/api/sessions/"+sessionID+"/results?workload=parse")
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode filtered results: %v", err)
	}
	if len(results) != 1 || results[0].Workload != storage.WorkloadParse {
		t.Fatalf("filtered results = %+v, want only the parse trial", results)
	}

	// Unknown workload name is a client error
	rec = get(t, server.Handler(), "/api/sessions/"+sessionID+"/results?workload=bogus")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus workload status = %d, want 400", rec.Code)
	}
}

func TestGetWorkloads(t *testing.T) {
	server, sessionID := newTestServer(t)

	rec := get(t, server.Handler(), "/api/sessions/"+sessionID+"/workloads")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("decode workloads: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("workloads = %v, want 2 entries", names)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	server, _ := newTestServer(t)

	server.UpdateMetrics(&Metrics{TPS: 42.5, Throughput: 1 << 30, Pending: 7})

	rec := get(t, server.Handler(), "/api/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var metrics Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if metrics.TPS != 42.5 || metrics.Pending != 7 {
		t.Errorf("metrics = %+v, want the updated snapshot", metrics)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	server.ObserveTrial(&storage.Result{Workload: storage.WorkloadFill, Bytes: 1 << 20})

	rec := get(t, server.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body == "" {
		t.Fatal("empty prometheus exposition")
	}
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
}
