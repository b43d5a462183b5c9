package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/calmloop/calmloop/backend/internal/analysis/care"
	"github.com/calmloop/calmloop/backend/internal/analysis/mood"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

// Bounds for the cached subset. The cache is a convenience across
// restarts, never a source of truth, so it keeps only enough to make a
// reload feel seamless.
const (
	TranscriptBound = 20
	MoodBound       = 10
	CheckInBound    = 5
)

// Snapshot is the bounded subset of orchestrator state worth keeping
// across restarts.
type Snapshot struct {
	SessionID       string                        `json:"sessionId,omitempty"`
	HistoryID       string                        `json:"historyId,omitempty"`
	Transcripts     []sessionmodel.TranscriptItem `json:"transcripts,omitempty"`
	MoodTimeline    []mood.InferenceResult        `json:"moodTimeline,omitempty"`
	RecentCheckIns  []checkin.CheckIn             `json:"recentCheckIns,omitempty"`
	Guardrails      sessionmodel.GuardrailFlags   `json:"guardrails"`
	Recommendations []care.Recommendation         `json:"recommendations,omitempty"`
	SavedAt         time.Time                     `json:"savedAt"`
}

// Bound trims the snapshot to the retained subset: the last
// TranscriptBound transcripts, last MoodBound mood entries and first
// CheckInBound check-ins.
func (s Snapshot) Bound() Snapshot {
	out := s
	if n := len(out.Transcripts); n > TranscriptBound {
		out.Transcripts = out.Transcripts[n-TranscriptBound:]
	}
	if n := len(out.MoodTimeline); n > MoodBound {
		out.MoodTimeline = out.MoodTimeline[n-MoodBound:]
	}
	if len(out.RecentCheckIns) > CheckInBound {
		out.RecentCheckIns = out.RecentCheckIns[:CheckInBound]
	}
	return out
}

// Store persists one snapshot per user in a local sqlite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path and ensures its
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS session_snapshots (
		user_id    TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot upserts the user's snapshot, bounded to the retained
// subset.
func (s *Store) SaveSnapshot(ctx context.Context, userID string, snap Snapshot) error {
	snap = snap.Bound()
	snap.SavedAt = time.Now().UTC()

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	const upsert = `INSERT INTO session_snapshots (user_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, upsert, userID, string(payload), snap.SavedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the user's cached snapshot, or nil when none
// exists.
func (s *Store) LoadSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	const query = `SELECT payload FROM session_snapshots WHERE user_id = ?`

	var payload string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot drops the user's cached snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE user_id = ?`, userID)
	return err
}
