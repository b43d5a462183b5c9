package history

import (
	"regexp"

	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
)

const (
	// TranscriptWindow bounds how many transcript entries a persisted
	// record carries, safety-flagged overflow aside.
	TranscriptWindow = 50

	// MoodTimelineCap bounds the persisted mood timeline.
	MoodTimelineCap = 24

	// RecommendationCap bounds the persisted recommendation snapshot.
	RecommendationCap = 5
)

// safetyAnnotation marks transcript entries that must survive pruning.
var safetyAnnotation = regexp.MustCompile(`(?i)(guardrail|safety|crisis)`)

// HasSafetyAnnotation reports whether any annotation on the item is
// safety-relevant.
func HasSafetyAnnotation(item sessionmodel.TranscriptItem) bool {
	for _, note := range item.Annotations {
		if safetyAnnotation.MatchString(note) {
			return true
		}
	}
	return false
}

// PruneTranscripts prepares a transcript log for persistence. Logs within
// the window are passed through whole. Larger logs keep the union of all
// safety-annotated entries and the most recent TranscriptWindow entries
// by arrival order, deduplicated by id. The result is always sorted by
// timestamp ascending.
func PruneTranscripts(items []sessionmodel.TranscriptItem) []sessionmodel.TranscriptItem {
	var kept []sessionmodel.TranscriptItem
	if len(items) <= TranscriptWindow {
		kept = append([]sessionmodel.TranscriptItem(nil), items...)
	} else {
		seen := make(map[string]bool, TranscriptWindow)
		for _, item := range items {
			if HasSafetyAnnotation(item) && !seen[item.ID] {
				seen[item.ID] = true
				kept = append(kept, item)
			}
		}
		for _, item := range items[len(items)-TranscriptWindow:] {
			if !seen[item.ID] {
				seen[item.ID] = true
				kept = append(kept, item)
			}
		}
	}
	sessionmodel.SortTranscripts(kept)
	return kept
}

// MergeTranscripts reconciles a local transcript log with a remote one by
// id: the union of ids wins, and for entries present in both the remote
// version is kept. The merge is idempotent and the result sorted by
// timestamp ascending.
func MergeTranscripts(local, remote []sessionmodel.TranscriptItem) []sessionmodel.TranscriptItem {
	merged := make([]sessionmodel.TranscriptItem, 0, len(local)+len(remote))
	index := make(map[string]int, len(local)+len(remote))

	for _, item := range local {
		if _, ok := index[item.ID]; ok {
			continue
		}
		index[item.ID] = len(merged)
		merged = append(merged, item)
	}
	for _, item := range remote {
		if at, ok := index[item.ID]; ok {
			merged[at] = item
			continue
		}
		index[item.ID] = len(merged)
		merged = append(merged, item)
	}

	sessionmodel.SortTranscripts(merged)
	return merged
}
