package checkin

import "time"

// CheckIn is a self-reported mood entry. Mood is on a 1-5 scale,
// Intensity on 1-10. The companion core only reads check-ins; they are
// written by the check-in feature of the app.
type CheckIn struct {
	ID             string    `json:"id"`
	Mood           int       `json:"mood"`
	Intensity      int       `json:"intensity"`
	Note           string    `json:"note,omitempty"`
	CrisisDetected bool      `json:"crisisDetected"`
	CreatedAt      time.Time `json:"createdAt"`
}
