package dto

import (
	"encoding/json"
	"time"

	"review-insights/internal/entity"
)

// CreateLocationRequest registers a location for a user. If the location is
// already known (same place), the existing record is linked instead.
type CreateLocationRequest struct {
	Name            string `json:"name"`
	GoogleMapsURL   string `json:"google_maps_url"`
	Address         string `json:"address"`
	ScrapeFrequency string `json:"scrape_frequency"`
	MaxReviews      int    `json:"max_reviews"`
	UserID          string `json:"-"`
}

// LocationResponse is the API representation of a location.
type LocationResponse struct {
	ID              string          `json:"id"`
	PlaceID         string          `json:"place_id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Address         string          `json:"address"`
	GoogleMapsURL   string          `json:"google_maps_url"`
	ScrapeStatus    string          `json:"scrape_status"`
	ScrapeFrequency string          `json:"scrape_frequency"`
	MaxReviews      int             `json:"max_reviews"`
	LastScrapedAt   *time.Time      `json:"last_scraped_at,omitempty"`
	LastScrapeError string          `json:"last_scrape_error,omitempty"`
	Insight         json.RawMessage `json:"insight,omitempty"`
	Stats           StatsBlock      `json:"stats"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StatsBlock carries the folded sentiment aggregate of a location.
type StatsBlock struct {
	PositivePct      float64    `json:"positive_pct"`
	NeutralPct       float64    `json:"neutral_pct"`
	NegativePct      float64    `json:"negative_pct"`
	AverageRating    float64    `json:"average_rating"`
	TotalReviews     int        `json:"total_reviews"`
	AnalyzedReviews  int        `json:"analyzed_reviews"`
	LastCalculatedAt *time.Time `json:"last_calculated_at,omitempty"`
}

// NewLocationResponse maps a location row to its API representation.
func NewLocationResponse(location *entity.Location) *LocationResponse {
	return &LocationResponse{
		ID:              location.ID,
		PlaceID:         location.PlaceID,
		Name:            location.Name,
		Slug:            location.Slug,
		Address:         location.Address,
		GoogleMapsURL:   location.GoogleMapsURL,
		ScrapeStatus:    location.ScrapeStatus,
		ScrapeFrequency: location.ScrapeFrequency,
		MaxReviews:      location.MaxReviews,
		LastScrapedAt:   location.LastScrapedAt,
		LastScrapeError: location.LastScrapeError,
		Insight:         json.RawMessage(location.Insight),
		Stats: StatsBlock{
			PositivePct:      location.PositivePct,
			NeutralPct:       location.NeutralPct,
			NegativePct:      location.NegativePct,
			AverageRating:    location.AverageRating,
			TotalReviews:     location.TotalReviews,
			LastCalculatedAt: location.LastCalculatedAt,
		},
		CreatedAt: location.CreatedAt,
	}
}

// CoverageResponse reports how much of a location's review set has been
// analyzed.
type CoverageResponse struct {
	LocationID      string  `json:"location_id"`
	TotalReviews    int64   `json:"total_reviews"`
	AnalyzedReviews int64   `json:"analyzed_reviews"`
	CoveragePct     float64 `json:"coverage_pct"`
}

// InsightSummaryResponse aggregates analyzed reviews across one or more
// locations.
type InsightSummaryResponse struct {
	LocationIDs     []string       `json:"location_ids"`
	TotalAnalyzed   int            `json:"total_analyzed"`
	TotalErrors     int            `json:"total_errors"`
	PositivePct     float64        `json:"positive_pct"`
	NeutralPct      float64        `json:"neutral_pct"`
	NegativePct     float64        `json:"negative_pct"`
	AverageScore    float64        `json:"average_score"`
	AverageRating   float64        `json:"average_rating"`
	TopKeywords     []WeightedTerm `json:"top_keywords"`
	TopTopics       []WeightedTerm `json:"top_topics"`
	RecentHighlight string         `json:"recent_highlight,omitempty"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// WeightedTerm is a keyword or topic with its occurrence count.
type WeightedTerm struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}
