package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"review-insights/internal/entity"
)

// TestLocation creates a location row with sane defaults.
func TestLocation(t *testing.T, db *gorm.DB, opts ...func(*entity.Location)) *entity.Location {
	t.Helper()

	n := time.Now().UnixNano()
	location := &entity.Location{
		PlaceID:       fmt.Sprintf("place_%d", n),
		Name:          "Test Cafe",
		Slug:          fmt.Sprintf("test-cafe-%d", n),
		Address:       "1 Test Street",
		GoogleMapsURL: fmt.Sprintf("https://www.google.com/maps/place/test-cafe-%d", n),
		ScrapeStatus:  entity.ScrapeStatusIdle,
		MaxReviews:    100,
	}

	for _, opt := range opts {
		opt(location)
	}

	if err := db.Create(location).Error; err != nil {
		t.Fatalf("Failed to create test location: %v", err)
	}

	return location
}

// WithScrapeStatus sets the location's scrape status.
func WithScrapeStatus(status string) func(*entity.Location) {
	return func(l *entity.Location) {
		l.ScrapeStatus = status
	}
}

// TestReview creates a review row for the location.
func TestReview(t *testing.T, db *gorm.DB, locationID string, opts ...func(*entity.Review)) *entity.Review {
	t.Helper()

	n := time.Now().UnixNano()
	review := &entity.Review{
		LocationID:  locationID,
		ReviewID:    fmt.Sprintf("gmr_%024d", n),
		AuthorName:  "Test Reviewer",
		Rating:      4,
		Text:        "Nice place, would come again",
		PublishedAt: time.Now().AddDate(0, 0, -7),
		ScrapedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(review)
	}

	if err := db.Create(review).Error; err != nil {
		t.Fatalf("Failed to create test review: %v", err)
	}

	return review
}

// WithReviewID sets the review's stable id.
func WithReviewID(id string) func(*entity.Review) {
	return func(r *entity.Review) {
		r.ReviewID = id
	}
}

// WithRating sets the review's rating.
func WithRating(rating int) func(*entity.Review) {
	return func(r *entity.Review) {
		r.Rating = rating
	}
}

// TestSummary creates a review summary row for the review.
func TestSummary(t *testing.T, db *gorm.DB, review *entity.Review, sentiment string, opts ...func(*entity.ReviewSummary)) *entity.ReviewSummary {
	t.Helper()

	summary := &entity.ReviewSummary{
		ReviewID:    review.ReviewID,
		LocationID:  review.LocationID,
		AuthorName:  review.AuthorName,
		Rating:      review.Rating,
		Text:        review.Text,
		PublishedAt: review.PublishedAt,
		Sentiment:   sentiment,
		Confidence:  0.9,
		ProcessedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(summary)
	}

	if err := db.Create(summary).Error; err != nil {
		t.Fatalf("Failed to create test summary: %v", err)
	}

	return summary
}

// TestJob creates a scrape job row for the location.
func TestJob(t *testing.T, db *gorm.DB, locationID string, opts ...func(*entity.ScrapeJob)) *entity.ScrapeJob {
	t.Helper()

	job := &entity.ScrapeJob{
		JobID:       fmt.Sprintf("scrape-%s-%d", locationID, time.Now().UnixNano()),
		LocationID:  locationID,
		SourceURL:   "https://www.google.com/maps/place/test-cafe",
		MaxItems:    100,
		Status:      entity.JobStatusQueued,
		MaxAttempts: entity.DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithJobStatus sets the job's status.
func WithJobStatus(status string) func(*entity.ScrapeJob) {
	return func(j *entity.ScrapeJob) {
		j.Status = status
	}
}
