package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Scrape lifecycle states for a location.
const (
	ScrapeStatusIdle      = "idle"
	ScrapeStatusPending   = "pending"
	ScrapeStatusScraping  = "scraping"
	ScrapeStatusCompleted = "completed"
	ScrapeStatusFailed    = "failed"
)

// Rescrape frequency options.
const (
	ScrapeFrequencyDaily  = "daily"
	ScrapeFrequencyWeekly = "weekly"
	ScrapeFrequencyManual = "manual"
)

// Location represents a business location whose Google Maps reviews are
// collected and analyzed. Locations are shared between users; per-user
// access goes through UserLocation.
type Location struct {
	ID                    string     `gorm:"type:uuid;primaryKey" json:"id"`
	PlaceID               string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"place_id"`
	Name                  string     `gorm:"type:varchar(255);not null" json:"name"`
	Slug                  string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Address               string     `gorm:"type:text" json:"address"`
	GoogleMapsURL         string     `gorm:"type:text;not null" json:"google_maps_url"`
	ScrapeStatus          string     `gorm:"type:varchar(20);not null;default:idle" json:"scrape_status"`
	ScrapeFrequency       string     `gorm:"type:varchar(20);not null;default:manual" json:"scrape_frequency"`
	MaxReviews            int        `gorm:"not null;default:100" json:"max_reviews"`
	LastScrapedAt         *time.Time `json:"last_scraped_at"`
	NextScheduledScrapeAt *time.Time `json:"next_scheduled_scrape_at"`
	LastScrapeError       string     `gorm:"type:text" json:"last_scrape_error"`
	LastScrapeErrorAt     *time.Time `json:"last_scrape_error_at"`

	Insight datatypes.JSON `gorm:"type:jsonb" json:"insight"`

	PositivePct      float64    `json:"positive_pct"`
	NeutralPct       float64    `json:"neutral_pct"`
	NegativePct      float64    `json:"negative_pct"`
	AverageRating    float64    `json:"average_rating"`
	TotalReviews     int        `json:"total_reviews"`
	LastCalculatedAt *time.Time `json:"last_calculated_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Location model.
func (Location) TableName() string {
	return "locations"
}

func (l *Location) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
