package mood

// sentimentValue maps a sentiment onto the -1..1 scale used for trend
// comparison.
func sentimentValue(s Sentiment) int {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

// EvaluateTrend compares the latest result against the most recent entry
// of the rolling timeline (oldest first). With an empty timeline or a nil
// result the trend is stable with delta 0.
func EvaluateTrend(latest *InferenceResult, timeline []InferenceResult) (Trend, int) {
	if latest == nil || len(timeline) == 0 {
		return TrendStable, 0
	}

	previous := timeline[len(timeline)-1]
	delta := sentimentValue(latest.Sentiment) - sentimentValue(previous.Sentiment)
	switch {
	case delta > 0:
		return TrendImproving, delta
	case delta < 0:
		return TrendDeclining, delta
	default:
		return TrendStable, 0
	}
}
