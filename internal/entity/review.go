package entity

import (
	"time"
)

// Review is a single scraped review. ReviewID is the stable identity used
// for deduplication across scrape runs.
type Review struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	LocationID        string    `gorm:"type:uuid;not null;index" json:"location_id"`
	ReviewID          string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"review_id"`
	AuthorName        string    `gorm:"type:varchar(255)" json:"author_name"`
	AuthorPhotoURL    string    `gorm:"type:text" json:"author_photo_url"`
	AuthorReviewCount int       `json:"author_review_count"`
	Rating            int       `gorm:"not null" json:"rating"`
	Text              string    `gorm:"type:text" json:"text"`
	PublishedAt       time.Time `json:"published_at"`
	ScrapedAt         time.Time `json:"scraped_at"`
	SourceURL         string    `gorm:"type:text" json:"source_url"`
	Likes             int       `json:"likes"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Review model.
func (Review) TableName() string {
	return "reviews"
}
