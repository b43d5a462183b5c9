package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snap := Snapshot{
		SessionID: "s1",
		HistoryID: "h1",
		Transcripts: []sessionmodel.TranscriptItem{
			{ID: "t1", Speaker: sessionmodel.SpeakerUser, Content: "hello"},
		},
		Guardrails: sessionmodel.GuardrailFlags{CrisisDetected: true},
	}
	if err := store.SaveSnapshot(ctx, "user-1", snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.LoadSnapshot(ctx, "user-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a snapshot")
	}
	if loaded.SessionID != "s1" || loaded.HistoryID != "h1" {
		t.Fatalf("round trip lost ids: %+v", loaded)
	}
	if len(loaded.Transcripts) != 1 || loaded.Transcripts[0].Content != "hello" {
		t.Fatalf("round trip lost transcripts: %+v", loaded.Transcripts)
	}
	if !loaded.Guardrails.CrisisDetected {
		t.Fatal("round trip lost guardrails")
	}
	if loaded.SavedAt.IsZero() {
		t.Fatal("savedAt not stamped")
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	store := openTestStore(t)
	loaded, err := store.LoadSnapshot(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for a missing snapshot, got %+v", loaded)
	}
}

func TestSaveSnapshotUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveSnapshot(ctx, "user-1", Snapshot{SessionID: "first"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveSnapshot(ctx, "user-1", Snapshot{SessionID: "second"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.LoadSnapshot(ctx, "user-1")
	if err != nil || loaded == nil {
		t.Fatalf("load: %v %v", loaded, err)
	}
	if loaded.SessionID != "second" {
		t.Fatalf("expected the later write to win, got %q", loaded.SessionID)
	}
}

func TestDeleteSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.SaveSnapshot(ctx, "user-1", Snapshot{SessionID: "s1"})
	if err := store.DeleteSnapshot(ctx, "user-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	loaded, _ := store.LoadSnapshot(ctx, "user-1")
	if loaded != nil {
		t.Fatal("snapshot not deleted")
	}
}

func TestBound(t *testing.T) {
	snap := Snapshot{}
	for i := 0; i < 30; i++ {
		snap.Transcripts = append(snap.Transcripts, sessionmodel.TranscriptItem{
			ID: fmt.Sprintf("t%d", i),
		})
		snap.RecentCheckIns = append(snap.RecentCheckIns, checkin.CheckIn{ID: fmt.Sprintf("c%d", i)})
	}

	bounded := snap.Bound()
	if len(bounded.Transcripts) != TranscriptBound {
		t.Fatalf("expected %d transcripts, got %d", TranscriptBound, len(bounded.Transcripts))
	}
	// Most recent transcripts are kept.
	if bounded.Transcripts[0].ID != "t10" {
		t.Fatalf("expected window to start at t10, got %s", bounded.Transcripts[0].ID)
	}
	if len(bounded.RecentCheckIns) != CheckInBound {
		t.Fatalf("expected %d check-ins, got %d", CheckInBound, len(bounded.RecentCheckIns))
	}
	// Check-ins are most recent first, so the head is kept.
	if bounded.RecentCheckIns[0].ID != "c0" {
		t.Fatalf("expected c0 kept, got %s", bounded.RecentCheckIns[0].ID)
	}
}
