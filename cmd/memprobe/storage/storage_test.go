package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testSession() *Session {
	return &Session{
		ID:          uuid.New().String(),
		StartTime:   time.Now().UTC(),
		TimerSource: "test",
		TimerFreqHz: 1_000_000_000,
	}
}

func testResults() []*Result {
	return []*Result{
		{Timestamp: 100, Workload: WorkloadFill, Trial: 0, SizeBytes: 1 << 20, Ticks: 50, Bytes: 1 << 20, PageFaults: 256},
		{Timestamp: 200, Workload: WorkloadFill, Trial: 1, SizeBytes: 1 << 20, Ticks: 40, Bytes: 1 << 20},
		{Timestamp: 300, Workload: WorkloadParse, Trial: 0, SizeBytes: 4096, Ticks: 90, Bytes: 4096},
		{Timestamp: 400, Workload: WorkloadParse, Trial: 1, SizeBytes: 4096, Ticks: 85, Bytes: 4096},
	}
}

func runStoreTests(t *testing.T, format string) {
	t.Helper()
	ctx := context.Background()

	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	defer manager.Close()

	session := testSession()
	store, err := manager.CreateSession(ctx, session, format)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	results := testResults()
	if err := store.WriteResult(results[0]); err != nil {
		t.Fatalf("write result: %v", err)
	}
	if err := store.WriteBatch(results[1:]); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if got := store.GetSession().ResultCount; got != int64(len(results)) {
		t.Errorf("live result count = %d, want %d", got, len(results))
	}

	final := *session
	final.ResultCount = int64(len(results))
	end := time.Now().UTC()
	final.EndTime = &end
	if err := store.UpdateSession(&final); err != nil {
		t.Fatalf("update session: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Reopen through the manager and read everything back.
	reopened, err := manager.OpenSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer reopened.Close()

	// A reopened store reports the persisted count, not a fresh counter.
	if got := reopened.GetSession().ResultCount; got != int64(len(results)) {
		t.Errorf("reopened result count = %d, want %d", got, len(results))
	}

	all, err := reopened.ReadResults(ctx, nil)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if len(all) != len(results) {
		t.Fatalf("read %d results, want %d", len(all), len(results))
	}
	for i, got := range all {
		if *got != *results[i] {
			t.Errorf("result %d = %+v, want %+v", i, got, results[i])
		}
	}

	// Workload filter
	fill := WorkloadFill
	filtered, err := reopened.ReadResults(ctx, &ResultFilter{Workload: &fill})
	if err != nil {
		t.Fatalf("read filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("workload filter returned %d results, want 2", len(filtered))
	}

	// Time window + limit
	start, endTs := uint64(150), uint64(350)
	windowed, err := reopened.ReadResults(ctx, &ResultFilter{StartTime: &start, EndTime: &endTs, Limit: 1})
	if err != nil {
		t.Fatalf("read windowed: %v", err)
	}
	if len(windowed) != 1 || windowed[0].Timestamp != 200 {
		t.Fatalf("windowed+limited read = %+v, want the timestamp-200 result", windowed)
	}

	// Offset
	offsetRead, err := reopened.ReadResults(ctx, &ResultFilter{Offset: 3})
	if err != nil {
		t.Fatalf("read with offset: %v", err)
	}
	if len(offsetRead) != 1 || offsetRead[0].Timestamp != 400 {
		t.Fatalf("offset read = %+v, want the timestamp-400 result", offsetRead)
	}

	workloads, err := reopened.GetWorkloads(ctx)
	if err != nil {
		t.Fatalf("get workloads: %v", err)
	}
	if len(workloads) != 2 {
		t.Fatalf("got %d workloads, want 2", len(workloads))
	}

	meta, err := manager.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session metadata: %v", err)
	}
	if meta.ResultCount != int64(len(results)) || meta.EndTime == nil {
		t.Errorf("persisted session = %+v, want end time and %d results", meta, len(results))
	}
}

func TestJSONLStore(t *testing.T) {
	runStoreTests(t, "jsonl")
}

func TestBinaryStore(t *testing.T) {
	runStoreTests(t, "binary")
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, "sqlite")
}

func TestManagerListAndDelete(t *testing.T) {
	ctx := context.Background()

	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		session := testSession()
		ids = append(ids, session.ID)
		store, err := manager.CreateSession(ctx, session, "jsonl")
		if err != nil {
			t.Fatalf("create session %d: %v", i, err)
		}
		store.Close()
	}

	sessions, err := manager.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("listed %d sessions, want 3", len(sessions))
	}

	if err := manager.DeleteSession(ctx, ids[0]); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	sessions, err = manager.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions after delete: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("listed %d sessions after delete, want 2", len(sessions))
	}

	if _, err := manager.OpenSession(ctx, ids[0]); err == nil {
		t.Fatal("opened a deleted session")
	}
}

func TestCreateSessionUnknownFormat(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if _, err := manager.CreateSession(context.Background(), testSession(), "csv"); err == nil {
		t.Fatal("created a session with an unknown format")
	}
}

func TestWorkloadNames(t *testing.T) {
	for _, w := range []WorkloadType{WorkloadFill, WorkloadRead, WorkloadParse, WorkloadAlloc} {
		name := WorkloadName(w)
		parsed, ok := ParseWorkload(name)
		if !ok || parsed != w {
			t.Errorf("ParseWorkload(WorkloadName(%d)) = %d, %v", w, parsed, ok)
		}
	}

	if name := WorkloadName(WorkloadType(99)); name != "unknown(99)" {
		t.Errorf("WorkloadName(99) = %q", name)
	}
	if _, ok := ParseWorkload("nope"); ok {
		t.Error("ParseWorkload accepted an unknown name")
	}
}
