package session

import (
	"sort"
	"time"
)

// Speaker identifies who produced a transcript item.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerCompanion Speaker = "companion"
	SpeakerSystem    Speaker = "system"
)

// TranscriptItem is a single utterance in a companion conversation.
// Items are immutable once created; the log is sorted by timestamp
// ascending before persistence but may be appended out of order.
type TranscriptItem struct {
	ID          string    `json:"id"`
	Speaker     Speaker   `json:"speaker"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Confidence  float64   `json:"confidence,omitempty"`
	Annotations []string  `json:"annotations,omitempty"`
}

// SortTranscripts orders a transcript log by timestamp ascending in place.
// Ties keep their existing relative order.
func SortTranscripts(items []TranscriptItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
}

// LatestUserUtterance returns the most recent item spoken by the user.
func LatestUserUtterance(items []TranscriptItem) (TranscriptItem, bool) {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Speaker == SpeakerUser {
			return items[i], true
		}
	}
	return TranscriptItem{}, false
}
