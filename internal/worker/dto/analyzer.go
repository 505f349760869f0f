package dto

import (
	"fmt"

	"review-insights/internal/entity"
)

// SentimentVerdict is the expected JSON structure for a single review
// analysis returned by the AI provider.
type SentimentVerdict struct {
	Sentiment      string   `json:"sentiment"`
	SentimentScore float64  `json:"sentiment_score"`
	Confidence     float64  `json:"confidence"`
	Keywords       []string `json:"keywords"`
	Topics         []string `json:"topics"`
	Summary        string   `json:"summary"`
}

// Validate rejects verdicts that parse as JSON but break the analysis
// contract. Model output with an unknown label or an out-of-range score
// must become an error result, not a stored summary.
func (v *SentimentVerdict) Validate() error {
	switch v.Sentiment {
	case entity.SentimentPositive, entity.SentimentNegative, entity.SentimentNeutral:
	default:
		return fmt.Errorf("unknown sentiment label %q", v.Sentiment)
	}
	if v.SentimentScore < -1 || v.SentimentScore > 1 {
		return fmt.Errorf("sentiment score %v outside [-1, 1]", v.SentimentScore)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", v.Confidence)
	}
	return nil
}

// InsightSummaryResult is the expected JSON structure for an aggregated
// insight summary over many analyzed reviews.
type InsightSummaryResult struct {
	Summary         string   `json:"summary"`
	KeyThemes       []string `json:"key_themes"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
}

// TermCount is one row of a term frequency table.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// BatchConfig echoes the settings a batch run executed with.
type BatchConfig struct {
	BatchSize   int `json:"batch_size"`
	Concurrency int `json:"concurrency"`
}

// AnalysisStats aggregates the verdicts of one batch run. Error results are
// counted but excluded from the sentiment distribution and the means.
type AnalysisStats struct {
	Total             int         `json:"total"`
	Positive          int         `json:"positive"`
	Negative          int         `json:"negative"`
	Neutral           int         `json:"neutral"`
	Errors            int         `json:"errors"`
	PositivePct       float64     `json:"positive_pct"`
	NegativePct       float64     `json:"negative_pct"`
	NeutralPct        float64     `json:"neutral_pct"`
	AvgSentimentScore float64     `json:"avg_sentiment_score"`
	AvgRating         float64     `json:"avg_rating"`
	TopKeywords       []TermCount `json:"top_keywords"`
	TopTopics         []TermCount `json:"top_topics"`

	// Timing and configuration of the run that produced the stats. Zero
	// when the stats were recomputed from stored summaries.
	ElapsedSeconds      float64     `json:"elapsed_seconds"`
	AvgSecondsPerReview float64     `json:"avg_seconds_per_review"`
	Batch               BatchConfig `json:"batch"`
}
