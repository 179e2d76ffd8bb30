package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/senga07/xAgentic/internal/engine"
)

func newSQLiteForTest(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleState(sessionID string, status engine.Status) *engine.ExecutionState {
	st := engine.NewExecutionState(sessionID, "find the answer")
	st.Status = status
	st.Plan = &engine.Plan{
		TaskAnalysis: "the user wants an answer",
		Steps: []engine.Step{
			{Index: 0, Description: "search", ExpectedResult: "sources"},
			{Index: 1, Description: "confirm deletion", ExpectedResult: "approval",
				RequiresConfirmation: true, UncertaintyReason: "destructive"},
		},
	}
	st.StepCursor = 1
	st.Results = []engine.StepResult{{
		StepIndex: 0,
		Status:    engine.StepCompleted,
		Output:    "found three sources",
		StartedAt: time.Now().Add(-2 * time.Second),
		Duration:  1500 * time.Millisecond,
	}}
	st.Pending = &engine.Confirmation{
		StepIndex: 1, StepNumber: 2, TotalSteps: 2,
		Description: "confirm deletion", UncertaintyReason: "destructive",
	}
	return st
}

func testRoundTrip(t *testing.T, store Store) {
	ctx := context.Background()
	st := sampleState("s-round", engine.StatusAwaitingConfirmation)

	if err := store.Put(ctx, st.SessionID, st); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := store.Get(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.SessionID != st.SessionID || got.Status != st.Status {
		t.Errorf("identity mismatch: got %s/%s", got.SessionID, got.Status)
	}
	if got.StepCursor != 1 {
		t.Errorf("expected cursor 1, got %d", got.StepCursor)
	}
	if got.Plan == nil || len(got.Plan.Steps) != 2 {
		t.Fatalf("plan did not round-trip: %+v", got.Plan)
	}
	if got.Plan.Steps[1].UncertaintyReason != "destructive" {
		t.Errorf("step fields did not round-trip: %+v", got.Plan.Steps[1])
	}
	if len(got.Results) != 1 || got.Results[0].Output != "found three sources" {
		t.Errorf("results did not round-trip: %+v", got.Results)
	}
	if got.Results[0].Duration != 1500*time.Millisecond {
		t.Errorf("duration did not round-trip: %v", got.Results[0].Duration)
	}
	if got.Pending == nil || got.Pending.StepNumber != 2 {
		t.Errorf("pending confirmation did not round-trip: %+v", got.Pending)
	}
}

func testUnknownSession(t *testing.T, store Store) {
	ctx := context.Background()
	if _, err := store.Get(ctx, "never-stored"); !errors.Is(err, engine.ErrNoSuchSession) {
		t.Errorf("expected ErrNoSuchSession, got %v", err)
	}
	if err := store.Delete(ctx, "never-stored"); !errors.Is(err, engine.ErrNoSuchSession) {
		t.Errorf("expected ErrNoSuchSession on delete, got %v", err)
	}
}

func testOverwrite(t *testing.T, store Store) {
	ctx := context.Background()
	st := sampleState("s-over", engine.StatusChecking)
	if err := store.Put(ctx, st.SessionID, st); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	st.Status = engine.StatusCompleted
	st.Pending = nil
	st.FinalResponse = "all done"
	if err := store.Put(ctx, st.SessionID, st); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := store.Get(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != engine.StatusCompleted || got.FinalResponse != "all done" {
		t.Errorf("overwrite not visible: %s / %q", got.Status, got.FinalResponse)
	}
	if got.Pending != nil {
		t.Errorf("expected cleared pending confirmation, got %+v", got.Pending)
	}
}

func testPurge(t *testing.T, store Store) {
	ctx := context.Background()

	old := sampleState("s-old-done", engine.StatusCompleted)
	old.Pending = nil
	old.UpdatedAt = time.Now().Add(-48 * time.Hour)
	fresh := sampleState("s-fresh-done", engine.StatusCompleted)
	fresh.Pending = nil
	suspended := sampleState("s-old-waiting", engine.StatusAwaitingConfirmation)
	suspended.UpdatedAt = time.Now().Add(-48 * time.Hour)

	for _, st := range []*engine.ExecutionState{old, fresh, suspended} {
		if err := store.Put(ctx, st.SessionID, st); err != nil {
			t.Fatalf("Put %s failed: %v", st.SessionID, err)
		}
	}

	purged, err := store.PurgeTerminalBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeTerminalBefore failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected exactly 1 purged session, got %d", purged)
	}
	if _, err := store.Get(ctx, "s-old-done"); !errors.Is(err, engine.ErrNoSuchSession) {
		t.Error("expected the old terminal session to be purged")
	}
	if _, err := store.Get(ctx, "s-fresh-done"); err != nil {
		t.Errorf("fresh terminal session must survive: %v", err)
	}
	if _, err := store.Get(ctx, "s-old-waiting"); err != nil {
		t.Errorf("suspended session must survive regardless of age: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, NewMemoryStore()) })
	t.Run("UnknownSession", func(t *testing.T) { testUnknownSession(t, NewMemoryStore()) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, NewMemoryStore()) })
	t.Run("Purge", func(t *testing.T) { testPurge(t, NewMemoryStore()) })
}

func TestSQLiteStore(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newSQLiteForTest(t)) })
	t.Run("UnknownSession", func(t *testing.T) { testUnknownSession(t, newSQLiteForTest(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newSQLiteForTest(t)) })
	t.Run("Purge", func(t *testing.T) { testPurge(t, newSQLiteForTest(t)) })
}

func TestMemoryStoreCloneIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	st := sampleState("s-iso", engine.StatusChecking)
	if err := store.Put(ctx, st.SessionID, st); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Mutating what we stored or what we read back must not affect the
	// stored copy.
	st.Plan.Steps[0].Description = "mutated after put"
	got, err := store.Get(ctx, "s-iso")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.Plan.Steps[0].Description = "mutated after get"

	again, err := store.Get(ctx, "s-iso")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.Plan.Steps[0].Description != "search" {
		t.Errorf("stored state was mutated through an alias: %q", again.Plan.Steps[0].Description)
	}
}

func TestSQLiteStoreListOrdersByRecency(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteForTest(t)

	older := sampleState("s-a", engine.StatusCompleted)
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := sampleState("s-b", engine.StatusChecking)
	newer.UpdatedAt = time.Now()

	if err := store.Put(ctx, older.SessionID, older); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, newer.SessionID, newer); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	states, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(states))
	}
	if states[0].SessionID != "s-b" || states[1].SessionID != "s-a" {
		t.Errorf("expected most recent first, got %s then %s",
			states[0].SessionID, states[1].SessionID)
	}
}

func TestSQLiteStoreToleratesUnknownFields(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteForTest(t)

	// A newer writer may add fields; older readers must skip them.
	payload := `{"session_id": "s-fwd", "status": "completed", "step_cursor": 0,
		"results": [], "event_log": [], "some_future_field": {"nested": true}}`
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, status, state, updated_at) VALUES (?, ?, ?, ?)`,
		"s-fwd", "completed", payload, time.Now().UTC().Format(timeLayout))
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}

	got, err := store.Get(ctx, "s-fwd")
	if err != nil {
		t.Fatalf("Get failed on payload with unknown fields: %v", err)
	}
	if got.Status != engine.StatusCompleted {
		t.Errorf("expected status completed, got %s", got.Status)
	}
}

func TestSQLiteStoreCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteForTest(t)

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, status, state, updated_at) VALUES (?, ?, ?, ?)`,
		"s-corrupt", "checking", "{not json", time.Now().UTC().Format(timeLayout))
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}

	if _, err := store.Get(ctx, "s-corrupt"); !errors.Is(err, engine.ErrSerialization) {
		t.Errorf("expected ErrSerialization for corrupt payload, got %v", err)
	}
}
