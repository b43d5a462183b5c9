package checkin

import (
	"testing"
	"time"
)

func TestRecentOrdersMostRecentFirst(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	store.Add("user-1", CheckIn{ID: "old", CreatedAt: base})
	store.Add("user-1", CheckIn{ID: "new", CreatedAt: base.Add(time.Hour)})
	store.Add("user-1", CheckIn{ID: "mid", CreatedAt: base.Add(30 * time.Minute)})

	recent := store.Recent("user-1", 0)
	if len(recent) != 3 {
		t.Fatalf("expected 3 check-ins, got %d", len(recent))
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if recent[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, recent[i].ID)
		}
	}
}

func TestRecentAppliesLimit(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	for i := 0; i < 5; i++ {
		store.Add("user-1", CheckIn{ID: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	recent := store.Recent("user-1", 2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 check-ins, got %d", len(recent))
	}
	if recent[0].ID != "e" {
		t.Fatalf("expected the latest first, got %s", recent[0].ID)
	}
}

func TestRecentIsolatesUsers(t *testing.T) {
	store := NewMemoryStore()
	store.Add("user-1", CheckIn{ID: "mine", CreatedAt: time.Now()})

	if got := store.Recent("user-2", 10); len(got) != 0 {
		t.Fatalf("expected no check-ins for another user, got %v", got)
	}
}
