package entity

import (
	"time"

	"github.com/lib/pq"
)

// Sentiment verdicts produced by the analyzer. SentimentError marks a
// review whose analysis failed; such rows are retried on the next pass.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentError    = "error"
)

// ReviewSummary is the per-review analysis result, upserted by ReviewID so
// reruns overwrite instead of duplicating.
type ReviewSummary struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ReviewID       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"review_id"`
	LocationID     string         `gorm:"type:uuid;not null;index" json:"location_id"`
	AuthorName     string         `gorm:"type:varchar(255)" json:"author_name"`
	Rating         int            `json:"rating"`
	Text           string         `gorm:"type:text" json:"text"`
	PublishedAt    time.Time      `json:"published_at"`
	Sentiment      string         `gorm:"type:varchar(20);not null" json:"sentiment"`
	SentimentScore float64        `json:"sentiment_score"`
	Confidence     float64        `json:"confidence"`
	Keywords       pq.StringArray `gorm:"type:text[]" json:"keywords"`
	Topics         pq.StringArray `gorm:"type:text[]" json:"topics"`
	Summary        string         `gorm:"type:text" json:"summary"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message"`
	ProcessedAt    time.Time      `json:"processed_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the ReviewSummary model.
func (ReviewSummary) TableName() string {
	return "review_summaries"
}

// IsError reports whether this summary records a failed analysis.
func (s *ReviewSummary) IsError() bool {
	return s.Sentiment == SentimentError
}
